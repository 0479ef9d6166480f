package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rawblock/inspect-gateway/internal/api"
	"github.com/rawblock/inspect-gateway/internal/config"
	"github.com/rawblock/inspect-gateway/internal/db"
	"github.com/rawblock/inspect-gateway/internal/inspect"
	"github.com/rawblock/inspect-gateway/internal/metrics"
	"github.com/rawblock/inspect-gateway/internal/schema"
	"github.com/rawblock/inspect-gateway/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("configuration error")
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer store.Close()
	if err := store.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema init failed")
	}
	log.Info().Msg("connected to postgres")

	// The formatter cannot run without the item catalog; the first fetch
	// must succeed before anything is served.
	schemas := schema.NewProvider(cfg.SchemaURL, log)
	if err := schemas.Fetch(ctx); err != nil {
		log.Fatal().Err(err).Msg("initial item schema fetch failed")
	}
	go schemas.Run(ctx, cfg.SchemaRefreshInterval)

	accounts, err := worker.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load accounts file")
	}
	if len(accounts) == 0 {
		log.Fatal().Str("path", cfg.AccountsFile).Msg("accounts file is empty")
	}

	manager := worker.NewManager(worker.ManagerConfig{
		BotsPerWorker:     cfg.BotsPerWorker,
		WorkerEnabled:     cfg.WorkerEnabled,
		MaxInspectRetries: cfg.MaxInspectRetries,
		StatsInterval:     cfg.StatsUpdateInterval,
		GCEndpoint:        cfg.GCEndpoint,
		ProxyURL:          cfg.ProxyURL,
		SessionDir:        cfg.SessionPath,
		BlacklistPath:     cfg.BlacklistPath,
		MaxRetries:        cfg.MaxRetries,
		LoginInterval:     cfg.LoginInterval,
	}, log)
	manager.Start(ctx, accounts)

	m := metrics.New()
	queue := inspect.NewQueue(cfg.MaxQueueSize)
	service := inspect.NewService(store, manager, schemas, queue, m, cfg.QueueTimeout, log)

	go watchFleet(ctx, manager, m, cfg.StatsUpdateInterval)

	router := api.SetupRouter(cfg, service, manager, store, schemas, m, log)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("inspect gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// watchFleet keeps the ready-bot gauge current from the manager snapshots.
func watchFleet(ctx context.Context, manager *worker.Manager, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if snap, err := manager.Stats(ctx); err == nil {
				m.ReadyBots.Set(float64(snap.ReadyBots))
			}
		}
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out zerolog.Logger
	if cfg.LogPretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		out = zerolog.New(os.Stderr)
	}
	return out.Level(level).With().Timestamp().Logger()
}
