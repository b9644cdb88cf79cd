package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jstrand/tradelink/internal/bus"
	"github.com/jstrand/tradelink/internal/config"
	"github.com/jstrand/tradelink/internal/conn"
	"github.com/jstrand/tradelink/internal/hub"
	"github.com/jstrand/tradelink/internal/logging"
	"github.com/jstrand/tradelink/internal/model"
	"github.com/jstrand/tradelink/internal/registry"
	"github.com/jstrand/tradelink/internal/upstream"
	"github.com/jstrand/tradelink/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/platform.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting platform",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Internal event bus
	eventBus := bus.New()
	defer eventBus.Close()

	// Shared resilience settings for every managed connection
	opts := conn.Options{
		MaxAttempts:    cfg.Connectivity.MaxReconnectAttempts,
		BaseDelay:      cfg.Connectivity.ReconnectDelay,
		Exponential:    cfg.Connectivity.Exponential(),
		HealthInterval: cfg.Connectivity.HealthCheckInterval,
		ProbeTimeout:   cfg.Connectivity.ProbeTimeout,
	}

	brokerCfg := upstream.DefaultBrokerConfig()
	brokerCfg.URL = cfg.Broker.URL
	brokerCfg.APIKey = cfg.Broker.APIKey
	brokerCfg.OrderRateLimit = cfg.Broker.OrderRateLimit
	brokerCfg.MaxSymbolSubscriptions = cfg.Broker.MaxSymbolSubscriptions

	mdCfg := upstream.DefaultMarketDataConfig()
	mdCfg.URL = cfg.MarketData.URL
	mdCfg.Symbols = cfg.MarketData.Symbols

	pgCfg := upstream.PostgresConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Name:     cfg.Database.Name,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}

	cacheCfg := upstream.CacheConfig{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	}

	// Connection registry. Factories build fresh instances so a forced
	// refresh starts from clean attempt counters.
	reg := registry.New(registry.Config{
		MaxConcurrentInits:       int64(cfg.Registry.MaxConcurrentInits),
		MonitorInterval:          cfg.Registry.MonitorInterval,
		FailedPollsBeforeRefresh: cfg.Registry.FailedPollsBeforeRefresh,
	}, logger)

	reg.Register(model.ConnBroker, func() *conn.Conn {
		return conn.New(model.ConnBroker, upstream.NewBroker(brokerCfg, logger), opts, logger)
	})
	reg.Register(model.ConnMarketData, func() *conn.Conn {
		return conn.New(model.ConnMarketData, upstream.NewMarketData(mdCfg, eventBus, logger), opts, logger)
	})
	reg.Register(model.ConnDatabase, func() *conn.Conn {
		return conn.New(model.ConnDatabase, upstream.NewPostgres(pgCfg), opts, logger)
	})
	reg.Register(model.ConnCache, func() *conn.Conn {
		return conn.New(model.ConnCache, upstream.NewCache(cacheCfg), opts, logger)
	})

	logger.Info("initializing upstream connections")
	if err := reg.InitializeAll(ctx); err != nil {
		logger.Error("no healthy upstream connection", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		reg.Shutdown(shutdownCtx)
	}()

	reg.StartMonitor(ctx)

	// Client distribution
	h := hub.New(hub.Config{
		HeartbeatInterval: cfg.Hub.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Hub.HeartbeatTimeout,
	}, logger)
	go h.RunHeartbeat(ctx)

	bridge := hub.NewBridge(eventBus, h, logger)
	go bridge.Run(ctx)

	// Client-facing HTTP server: WebSocket endpoint plus health and stats
	mux := http.NewServeMux()
	mux.Handle("/ws", h.Handler())
	mux.HandleFunc("/health", healthHandler(reg))
	mux.HandleFunc("/stats", statsHandler(h, eventBus))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("platform running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info("platform stopped")
}

// healthHandler reports per-connection health. The platform is healthy when
// every connection is connected, degraded while at least one is, and
// unhealthy (503) when none are.
func healthHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := reg.Statuses()

		connected := 0
		for _, s := range statuses {
			if s.Health.State == conn.StateConnected {
				connected++
			}
		}

		overall := "healthy"
		code := http.StatusOK
		switch {
		case connected == 0:
			overall = "unhealthy"
			code = http.StatusServiceUnavailable
		case connected < len(statuses):
			overall = "degraded"
		}

		payload := struct {
			Status      string            `json:"status"`
			Connections []registry.Status `json:"connections"`
		}{
			Status:      overall,
			Connections: statuses,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(payload)
	}
}

// statsHandler exposes hub and bus counters.
func statsHandler(h *hub.Hub, b *bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		published, dropped := b.Stats()

		payload := struct {
			Hub hub.Stats `json:"hub"`
			Bus struct {
				Published int64 `json:"published"`
				Dropped   int64 `json:"dropped"`
			} `json:"bus"`
		}{Hub: h.Stats()}
		payload.Bus.Published = published
		payload.Bus.Dropped = dropped

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}
}
