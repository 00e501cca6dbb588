// Package main wires the code-graph retrieval engine together and runs it
// as a line-delimited JSON-RPC server over stdio: configuration, storage,
// bus, embedding provider, parser, indexer, dev/query/semantic agents, and
// the Conductor that orchestrates them. It follows the teacher's cobra
// root-command idiom, trimmed to the one long-running "serve" behavior this
// engine exposes instead of a multi-command CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codegraph/internal/agent"
	"codegraph/internal/bus"
	"codegraph/internal/conductor"
	"codegraph/internal/config"
	"codegraph/internal/devagent"
	"codegraph/internal/embedding"
	"codegraph/internal/indexer"
	"codegraph/internal/logging"
	"codegraph/internal/parser"
	"codegraph/internal/query"
	"codegraph/internal/rpc"
	"codegraph/internal/semantic"
	"codegraph/internal/store"
)

var (
	configPath string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "codegraph",
	Short: "code-graph retrieval engine — serves code structure and semantics over JSON-RPC",
	Long: `codegraph indexes a source tree into an entity/relationship graph plus a
vector store, and answers structural and semantic queries over it through a
line-delimited JSON-RPC 2.0 transport on stdin/stdout.

Run without arguments to start serving requests.`,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults used if absent)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable category file logging under .codegraph/logs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("codegraph: load config: %w", err)
	}
	if debugMode {
		cfg.Logging.DebugMode = true
	}

	if err := logging.Initialize(logging.Options{
		DebugMode:  cfg.Logging.DebugMode,
		Structured: cfg.Logging.Structured,
		Dir:        cfg.Logging.Dir,
	}); err != nil {
		return fmt.Errorf("codegraph: init logging: %w", err)
	}
	defer logging.CloseAll()
	log := logging.Get(logging.Boot)

	eng, err := buildEngine(cfg)
	if err != nil {
		return fmt.Errorf("codegraph: build engine: %w", err)
	}
	defer eng.shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("codegraph engine ready, serving stdio JSON-RPC")
	server := rpc.NewServer(eng.conductor, eng.dev, eng.query, eng.semantic, eng.store)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("codegraph: rpc server: %w", err)
	}
	log.Info("codegraph engine shutting down")
	return nil
}

// engine holds every long-lived component buildEngine assembles, so
// shutdown can tear them down in reverse dependency order.
type engine struct {
	store     *store.Manager
	bus       *bus.Bus
	query     *query.Engine
	semantic  *semantic.Engine
	dev       *devagent.DevAgent
	conductor *conductor.Conductor

	devBase      *agent.Base
	queryBase    *agent.Base
	semanticBase *agent.Base
}

func buildEngine(cfg config.Config) (*engine, error) {
	s, err := store.Open(store.Options{
		Path:          cfg.Database.Path,
		MaxReadConns:  cfg.Database.MaxReadConns,
		MinReadConns:  cfg.Database.MinReadConns,
		BusyTimeoutMs: cfg.Database.BusyTimeoutMs,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	b := bus.New()

	provider, err := buildEmbeddingProvider(cfg.MCP.Embedding)
	if err != nil {
		s.Close()
		return nil, err
	}

	var p parser.Parser
	if cfg.Parser.TreeSitter.Enabled {
		p = parser.NewTreeSitterParser()
	}
	idx := indexer.New(s, b)

	dev := devagent.New(devagent.Options{
		Extensions:     cfg.DevAgent.Extensions,
		IgnorePatterns: cfg.DevAgent.IgnorePatterns,
		BatchSize:      cfg.DevAgent.IndexBatchSize,
		UseParser:      cfg.DevAgent.UseParser,
		DebugMode:      cfg.Logging.DebugMode,
	}, p, idx, b)

	queryEngine := query.New(s, b, query.Options{
		CacheCapacity:  cfg.QueryAgent.CacheCapacity,
		CacheTTL:       cfg.QueryAgent.CacheTTL,
		Weights:        cfg.QueryAgent.HotspotWeights,
		SimpleTimeout:  msDuration(cfg.QueryAgent.SimpleQueryTimeoutMs),
		ComplexTimeout: msDuration(cfg.QueryAgent.ComplexQueryTimeoutMs),
		MaxConcurrency: cfg.QueryAgent.MaxConcurrency,
	})

	semanticEngine := semantic.New(s, queryEngine, provider, b, semantic.Options{})

	strategy := conductor.StrategyLeastLoaded
	switch cfg.Conductor.LoadBalancingStrategy {
	case string(conductor.StrategyRoundRobin):
		strategy = conductor.StrategyRoundRobin
	case string(conductor.StrategyHighestPriority):
		strategy = conductor.StrategyHighestPriority
	}
	cond := conductor.New(b, conductor.Options{
		Strategy:            strategy,
		ComplexityThreshold: cfg.Conductor.ComplexityThreshold,
		MandatoryDelegation: cfg.Conductor.MandatoryDelegation,
		TaskQueueLimit:      cfg.Conductor.TaskQueueLimit,
	})

	devBase := agent.New("dev-1", "dev", agent.Capabilities{
		MaxConcurrency: cfg.DevAgent.MaxConcurrency,
		MemoryLimitMB:  cfg.DevAgent.MemoryLimitMB,
		Priority:       cfg.DevAgent.Priority,
	}, b, devagent.NewHandler(dev))
	queryBase := agent.New("query-1", "query", agent.Capabilities{
		MaxConcurrency: cfg.QueryAgent.MaxConcurrency,
		MemoryLimitMB:  cfg.QueryAgent.MemoryLimitMB,
		Priority:       cfg.QueryAgent.Priority,
	}, b, query.NewHandler(queryEngine))
	semanticBase := agent.New("semantic-1", "semantic", agent.Capabilities{
		MaxConcurrency: cfg.MCP.Agents.MaxConcurrent,
		Priority:       5,
	}, b, semantic.NewHandler(semanticEngine))

	cond.Registry.Register(devBase)
	cond.Registry.Register(queryBase)
	cond.Registry.Register(semanticBase)

	return &engine{
		store: s, bus: b, query: queryEngine, semantic: semanticEngine, dev: dev,
		conductor: cond, devBase: devBase, queryBase: queryBase, semanticBase: semanticBase,
	}, nil
}

func buildEmbeddingProvider(cfg config.MCPEmbeddingConfig) (embedding.Engine, error) {
	switch cfg.Provider {
	case "onnx":
		return embedding.NewONNXEngine(embedding.ONNXConfig{ModelPath: cfg.Model}), nil
	case "http":
		return embedding.NewHTTPEngine(embedding.HTTPConfig{
			BaseURL:      cfg.Ollama.BaseURL,
			Model:        cfg.Model,
			TimeoutMs:    cfg.Ollama.TimeoutMs,
			Concurrency:  cfg.Ollama.Concurrency,
			MaxBatchSize: cfg.Ollama.MaxBatchSize,
		}), nil
	case "", "memory":
		return embedding.NewMemoryEngine(384), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// shutdown tears components down in reverse dependency order: agents first
// (so no further delegated work lands on the store), then the engines'
// background watchers, then the bus, then the store, flushing its
// write-ahead log on close.
func (e *engine) shutdown() {
	e.devBase.Stop()
	e.queryBase.Stop()
	e.semanticBase.Stop()
	e.conductor.Stop()
	e.dev.Stop()
	e.query.Stop()
	e.bus.Close()
	e.store.Close()
}
