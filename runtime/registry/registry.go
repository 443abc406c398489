// Package registry discovers specialist agents by fetching and validating
// their agent cards from the A2A well-known endpoint, and resolves agents by
// name for delegation.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"goa.design/clue/log"

	"goa.design/horizon/runtime/a2a/types"
)

// ErrAgentNotFound indicates the named agent was never discovered.
var ErrAgentNotFound = errors.New("agent not found in registry")

// WellKnownPath is the conventional location of an agent card relative to
// the agent's base URL.
const WellKnownPath = "/.well-known/agent.json"

// cardSchema is the structural contract a discovery document must satisfy
// before it is admitted to the registry. Cards missing a name or URL are
// unusable for delegation and are rejected.
const cardSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["name", "url"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"url": {"type": "string", "minLength": 1},
		"version": {"type": "string"},
		"capabilities": {"type": "object"},
		"skills": {"type": "array"}
	}
}`

// maxCardSize bounds the size of a discovery document read off the wire.
const maxCardSize = 1 << 20

type (
	// Registry maintains the set of known specialist agents. Discovery
	// fetches agent cards from configured base URLs; Lookup resolves an
	// agent by card name, refetching through the cache when the cached
	// entry has expired.
	Registry struct {
		client *http.Client
		cache  Cache
		ttl    time.Duration
		schema *jsonschema.Schema

		mu      sync.RWMutex
		origins map[string]string // card name -> base URL it was discovered from
	}

	// Option configures a Registry.
	Option func(*Registry)
)

// WithHTTPClient overrides the HTTP client used to fetch agent cards.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) { r.client = c }
}

// WithCache overrides the agent card cache. Defaults to an in-memory cache.
func WithCache(c Cache) Option {
	return func(r *Registry) { r.cache = c }
}

// WithTTL sets how long discovered cards stay fresh before a Lookup triggers
// a refetch. Zero keeps cards forever. Defaults to 5 minutes.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		client:  &http.Client{Timeout: 10 * time.Second},
		ttl:     5 * time.Minute,
		origins: make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.cache == nil {
		r.cache = NewMemoryCache()
	}
	r.schema = compileCardSchema()
	return r
}

func compileCardSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(cardSchema))
	if err != nil {
		panic(fmt.Sprintf("agent card schema is invalid JSON: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("agent-card.json", doc); err != nil {
		panic(fmt.Sprintf("agent card schema resource: %v", err))
	}
	return c.MustCompile("agent-card.json")
}

// Discover fetches the agent card of every base URL and registers the valid
// ones. Unreachable or invalid agents are logged and skipped; discovery
// never fails as a whole. It returns the cards registered in this pass.
func (r *Registry) Discover(ctx context.Context, baseURLs []string) []*types.AgentCard {
	var cards []*types.AgentCard
	for _, base := range baseURLs {
		card, err := r.fetchCard(ctx, base)
		if err != nil {
			log.Errorf(ctx, err, "skipping agent at %q", base)
			continue
		}
		if err := r.register(ctx, base, card); err != nil {
			log.Errorf(ctx, err, "caching agent card %q", card.Name)
			continue
		}
		log.Printf(ctx, "discovered agent %q at %q", card.Name, base)
		cards = append(cards, card)
	}
	return cards
}

// Lookup resolves an agent card by name. Expired entries are refetched from
// the URL they were originally discovered at; if the refetch fails the agent
// is reported as not found.
func (r *Registry) Lookup(ctx context.Context, name string) (*types.AgentCard, error) {
	card, err := r.cache.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("reading agent card cache: %w", err)
	}
	if card != nil {
		return card, nil
	}

	r.mu.RLock()
	base, known := r.origins[name]
	r.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrAgentNotFound, name)
	}

	card, err = r.fetchCard(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: refetch failed: %v", ErrAgentNotFound, name, err)
	}
	if err := r.register(ctx, base, card); err != nil {
		return nil, fmt.Errorf("caching agent card %q: %w", card.Name, err)
	}
	return card, nil
}

// Names returns the names of all agents discovered so far, including ones
// whose cached cards have expired.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.origins))
	for name := range r.origins {
		names = append(names, name)
	}
	return names
}

// Cards returns the cards of all agents with a live cache entry.
func (r *Registry) Cards(ctx context.Context) []*types.AgentCard {
	var cards []*types.AgentCard
	for _, name := range r.Names() {
		card, err := r.cache.Get(ctx, name)
		if err != nil || card == nil {
			continue
		}
		cards = append(cards, card)
	}
	return cards
}

func (r *Registry) register(ctx context.Context, base string, card *types.AgentCard) error {
	if err := r.cache.Set(ctx, card.Name, card, r.ttl); err != nil {
		return err
	}
	r.mu.Lock()
	r.origins[card.Name] = base
	r.mu.Unlock()
	return nil
}

// fetchCard retrieves and validates the discovery document of one agent.
func (r *Registry) fetchCard(ctx context.Context, base string) (*types.AgentCard, error) {
	url := strings.TrimSuffix(base, "/") + WellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building card request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching agent card: unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCardSize))
	if err != nil {
		return nil, fmt.Errorf("reading agent card: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("agent card is not valid JSON: %w", err)
	}
	if err := r.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("agent card failed validation: %w", err)
	}

	var card types.AgentCard
	if err := json.Unmarshal(raw, &card); err != nil {
		return nil, fmt.Errorf("decoding agent card: %w", err)
	}
	return &card, nil
}
