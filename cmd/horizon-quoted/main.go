// Command horizon-quoted is the quote MCP worker. By default it speaks
// newline-delimited JSON-RPC over stdio so a specialist can spawn one
// subprocess per task; with -http it serves the same surface over HTTP.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"goa.design/clue/log"
)

func main() {
	var (
		httpF = flag.String("http", "", "Serve over HTTP on this address instead of stdio")
		seedF = flag.Int64("seed", time.Now().UnixNano(), "Seed for the quote random walk")
	)
	flag.Parse()

	// In stdio mode stdout is the protocol channel, so logs go to stderr.
	ctx := log.Context(context.Background(), log.WithOutput(os.Stderr), log.WithFormat(log.FormatJSON))

	w := &worker{book: newQuoteBook(*seedF)}

	if *httpF != "" {
		srv := &http.Server{
			Addr:              *httpF,
			Handler:           log.HTTP(ctx)(w.httpHandler()),
			ReadHeaderTimeout: 10 * time.Second,
		}
		log.Printf(ctx, "quote worker listening on %s", *httpF)
		if err := srv.ListenAndServe(); err != nil {
			log.Fatal(ctx, err)
		}
		return
	}

	if err := w.serveStdio(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatal(ctx, err)
	}
}
