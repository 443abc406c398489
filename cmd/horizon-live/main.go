// Command horizon-live runs the host-side live server: it discovers the
// configured specialist agents, connects browser clients to the Gemini live
// runtime over websockets, and delegates specialist work over A2A.
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

	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/health"
	"goa.design/clue/log"
	"google.golang.org/genai"

	"goa.design/horizon/config"
	redisregistry "goa.design/horizon/features/registry/redis"
	mongosession "goa.design/horizon/features/session/mongo"
	mongoclient "goa.design/horizon/features/session/mongo/clients/mongo"
	"goa.design/horizon/runtime/bridge"
	"goa.design/horizon/runtime/delegate"
	"goa.design/horizon/runtime/live/gemini"
	"goa.design/horizon/runtime/registry"
	"goa.design/horizon/runtime/session"
	sessioninmem "goa.design/horizon/runtime/session/inmem"
)

const hostInstruction = `You are a voice assistant that answers questions by
delegating to specialist agents. When the user asks for information a
specialist provides, call delegate_task with the specialist's name and the
query. Summarize results conversationally.`

func main() {
	var (
		configF = flag.String("config", "", "Path to YAML configuration file")
		addrF   = flag.String("addr", "", "HTTP listen address (overrides config)")
		uiF     = flag.String("ui", "", "Directory of static UI assets to serve at /")
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
		cfg.Live.Addr = *addrF
	}
	log.Print(ctx, log.KV{K: "addr", V: cfg.Live.Addr}, log.KV{K: "model", V: cfg.Live.Model})

	// Session store: Mongo when configured, in-memory otherwise.
	var (
		sessions session.Store
		pingers  []health.Pinger
	)
	if cfg.Live.Mongo.URI != "" {
		mc, err := mongodriver.Connect(mongooptions.Client().ApplyURI(cfg.Live.Mongo.URI))
		if err != nil {
			log.Fatalf(ctx, err, "connecting to mongo")
		}
		defer func() {
			if err := mc.Disconnect(context.Background()); err != nil {
				log.Errorf(ctx, err, "disconnecting from mongo")
			}
		}()
		client, err := mongoclient.New(mongoclient.Options{Client: mc, Database: cfg.Live.Mongo.Database})
		if err != nil {
			log.Fatalf(ctx, err, "building mongo session client")
		}
		store, err := mongosession.NewStore(client)
		if err != nil {
			log.Fatalf(ctx, err, "building mongo session store")
		}
		sessions = store
		pingers = append(pingers, client)
	} else {
		log.Printf(ctx, "no mongo URI configured, using in-memory sessions")
		sessions = sessioninmem.New()
	}

	// Agent card cache: Redis when configured, in-memory otherwise.
	regOpts := []registry.Option{registry.WithTTL(cfg.Live.DiscoveryTTL)}
	if cfg.Live.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Live.Redis.Addr})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Errorf(ctx, err, "closing redis client")
			}
		}()
		cache, err := redisregistry.New(rdb)
		if err != nil {
			log.Fatalf(ctx, err, "building redis agent card cache")
		}
		regOpts = append(regOpts, registry.WithCache(cache))
	}

	reg := registry.New(regOpts...)
	cards := reg.Discover(ctx, cfg.Live.Specialists)
	log.Printf(ctx, "discovered %d of %d specialist agents", len(cards), len(cfg.Live.Specialists))

	delegator := delegate.New(reg)
	invoker := gemini.ToolInvokerFunc(func(ctx context.Context, sess *session.Session, tool string, args map[string]any) (map[string]any, error) {
		if tool != "delegate_task" {
			return nil, fmt.Errorf("unknown tool %q", tool)
		}
		specialist, _ := args["specialist"].(string)
		input, _ := args["input"].(string)
		out := delegator.Delegate(ctx, specialist, input, sess.ID)
		result := map[string]any{"status": out.Status}
		if out.Message != "" {
			result["message"] = out.Message
		}
		if out.Data != nil {
			result["data"] = out.Data
		}
		return result, nil
	})

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Live.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatalf(ctx, err, "creating genai client")
	}

	runner, err := gemini.NewRunner(genaiClient, sessions,
		gemini.WithModel(cfg.Live.Model),
		gemini.WithSystemInstruction(hostInstruction),
		gemini.WithTools(invoker, delegateToolDecl(reg.Names())),
	)
	if err != nil {
		log.Fatalf(ctx, err, "creating live runner")
	}

	b := bridge.New(sessions, runner)

	mux := http.NewServeMux()
	mux.Handle("GET /ws/{session}", bridge.Handler(b))
	mux.Handle("GET /healthz", health.Handler(health.NewChecker(pingers...)))
	if *uiF != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(*uiF)))
	}
	handler := log.HTTP(ctx)(mux)

	srv := &http.Server{
		Addr:              cfg.Live.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		log.Printf(ctx, "live server listening on %s", cfg.Live.Addr)
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

// delegateToolDecl declares the delegation tool advertised to the model,
// listing the discovered specialists in the parameter description so the
// model picks valid names.
func delegateToolDecl(specialists []string) *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "delegate_task",
		Description: "Delegate a query to a specialist agent and return its result.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"specialist": {
					Type:        genai.TypeString,
					Description: fmt.Sprintf("Name of the specialist agent. Known agents: %v", specialists),
				},
				"input": {
					Type:        genai.TypeString,
					Description: "The query to send, e.g. a ticker symbol.",
				},
			},
			Required: []string{"specialist", "input"},
		},
	}
}
