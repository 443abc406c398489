// Command horizon-specialist runs one specialist agent: an A2A JSON-RPC
// server that executes each task by invoking a tool on its MCP worker and
// publishes its agent card at the well-known discovery path.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goa.design/clue/log"

	"goa.design/horizon/config"
	"goa.design/horizon/runtime/a2a"
	"goa.design/horizon/runtime/a2a/types"
	"goa.design/horizon/runtime/mcp"
)

func main() {
	var (
		configF = flag.String("config", "", "Path to YAML configuration file")
		addrF   = flag.String("addr", "", "HTTP listen address (overrides config)")
		dbgF    = flag.Bool("debug", false, "Enable debug logs")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	cfg, err := config.Load(*configF)
	if err != nil {
		log.Fatal(ctx, err)
	}
	if *addrF != "" {
		cfg.Specialist.Addr = *addrF
	}
	sp := cfg.Specialist
	log.Print(ctx, log.KV{K: "addr", V: sp.Addr}, log.KV{K: "agent", V: sp.Name})

	workers, err := workerFactory(sp.Worker)
	if err != nil {
		log.Fatal(ctx, err)
	}

	store := a2a.NewMemoryTaskStore()
	handler, err := a2a.NewWorkerHandler(store, workers, sp.Worker.Tool, sp.Worker.ArgName, sp.Worker.ResultArtifact)
	if err != nil {
		log.Fatalf(ctx, err, "building task handler")
	}

	var opts []a2a.ServerOption
	if sp.RateLimit > 0 {
		opts = append(opts, a2a.WithRateLimit(sp.RateLimit, sp.RateBurst))
	}
	server, err := a2a.NewServer(agentCard(sp), handler, store, opts...)
	if err != nil {
		log.Fatalf(ctx, err, "building A2A server")
	}

	mux := http.NewServeMux()
	mux.Handle("POST /", server)
	mux.Handle("GET "+registryPath, server.CardHandler())

	srv := &http.Server{
		Addr:              sp.Addr,
		Handler:           log.HTTP(ctx)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		log.Printf(ctx, "specialist %q listening on %s", sp.Name, sp.Addr)
		errc <- srv.ListenAndServe()
	}()

	log.Printf(ctx, "exiting (%v)", <-errc)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf(ctx, err, "shutting down HTTP server")
	}
	log.Printf(ctx, "exited")
}

const registryPath = "/.well-known/agent.json"

// workerFactory builds the per-task MCP caller factory from the worker
// configuration: a stdio subprocess when a command is set, an HTTP caller
// when an endpoint is set.
func workerFactory(w config.Worker) (a2a.WorkerFactory, error) {
	switch {
	case w.Command != "":
		return func(ctx context.Context) (mcp.Caller, error) {
			return mcp.NewStdioCaller(ctx, w.Command, w.Args...)
		}, nil
	case w.Endpoint != "":
		return func(context.Context) (mcp.Caller, error) {
			return mcp.NewHTTPCaller(w.Endpoint)
		}, nil
	default:
		return nil, fmt.Errorf("worker requires either a command or an endpoint")
	}
}

func agentCard(sp config.Specialist) *types.AgentCard {
	return &types.AgentCard{
		Name:        sp.Name,
		Description: sp.Description,
		URL:         sp.PublicURL,
		Version:     "1.0.0",
		Capabilities: types.Capabilities{
			Streaming: false,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text", "data"},
		Skills: []*types.Skill{{
			ID:          sp.Worker.Tool,
			Name:        sp.Worker.Tool,
			Description: sp.Description,
			Tags:        []string{"delegation"},
		}},
	}
}
