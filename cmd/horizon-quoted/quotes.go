package main

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// quoteBook serves indicative prices for a fixed set of symbols. Prices
// drift a little on every lookup so repeated queries look alive.
type quoteBook struct {
	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
}

func newQuoteBook(seed int64) *quoteBook {
	return &quoteBook{
		prices: map[string]float64{
			"GOOG": 172.50,
			"AAPL": 231.10,
			"MSFT": 428.90,
			"AMZN": 186.40,
			"NVDA": 121.70,
		},
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Lookup returns the tool result payload for one symbol: a quote on success
// or an error payload for unknown symbols.
func (b *quoteBook) Lookup(symbol string) map[string]any {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return map[string]any{"error": "symbol is required"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.prices[symbol]
	if !ok {
		return map[string]any{"error": fmt.Sprintf("unknown symbol: %s", symbol)}
	}
	// Random walk within ±0.5%.
	price *= 1 + (b.rng.Float64()-0.5)/100
	b.prices[symbol] = price

	return map[string]any{
		"symbol":   symbol,
		"price":    float64(int(price*100)) / 100,
		"currency": "USD",
	}
}
