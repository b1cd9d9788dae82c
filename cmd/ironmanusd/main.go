// Command ironmanusd runs the phase-engine orchestrator as a stdio
// JSON-RPC-style service, wiring config, logging, telemetry, storage,
// and the tool registry together before serving requests.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ironmanus/internal/breaker"
	"ironmanus/internal/catalog"
	"ironmanus/internal/config"
	"ironmanus/internal/fsm"
	"ironmanus/internal/graph"
	"ironmanus/internal/obslog"
	"ironmanus/internal/obstel"
	"ironmanus/internal/pipeline"
	"ironmanus/internal/ratelimit"
	"ironmanus/internal/rpc"
	"ironmanus/internal/session"
	"ironmanus/internal/ssrf"
	"ironmanus/internal/tools"
)

func main() {
	started := time.Now()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := obslog.NewJSONLogger(cfg.ServiceName, obslog.ParseLevel(cfg.Logging.Level), os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var telemetry *obstel.Provider
	if cfg.Telemetry.Enabled {
		telemetry, err = obstel.New(ctx, cfg.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			logger.Error("telemetry init failed, continuing without it", map[string]interface{}{"error": err.Error()})
			telemetry = obstel.NoOp()
		}
	} else {
		telemetry = obstel.NoOp()
	}
	defer telemetry.Shutdown(context.Background())

	sessions, err := session.New(cfg.Session.Backend, cfg.Session.RedisURL, cfg.Session.IdleTimeout, logger)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	defer sessions.Close()
	session.StartSweeper(ctx, sessions, cfg.Session.SweepInterval, logger)

	graphStore := graph.New(cfg.Graph.BaseDir, cfg.Graph.InMemoryOnly, logger)
	defer graphStore.Close()

	cat, err := catalog.Load(logger)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	guard := ssrf.New(cfg.SSRF.Enabled, cfg.SSRF.AllowedHosts)
	limiter := ratelimit.New()
	breakers := breaker.NewRegistry(breaker.DefaultConfig())

	pipe := pipeline.New(cfg.Knowledge, cfg.RateLimit, guard, limiter, breakers, telemetry, logger)
	engine := fsm.New(sessions, graphStore, cat, pipe, cfg.Knowledge, telemetry, logger)

	registry := tools.Registry{
		"JARVIS":              tools.NewJARVIS(engine),
		"APITaskAgent":        tools.NewAPITaskAgent(cat, pipe),
		"IronManusStateGraph": tools.NewStateGraph(graphStore),
	}
	registry["HealthCheck"] = tools.NewHealthCheck(cfg, cat, registry, sessions, started)

	server := rpc.NewServer(registry, logger)
	logger.Info("ironmanusd ready", map[string]interface{}{"service": cfg.ServiceName, "session_backend": cfg.Session.Backend})

	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("rpc server stopped", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}
