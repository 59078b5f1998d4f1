// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/utakatalp/volley-simulator/internal/api"
	"github.com/utakatalp/volley-simulator/internal/config"
	"github.com/utakatalp/volley-simulator/internal/datafile"
	"github.com/utakatalp/volley-simulator/internal/live"
	"github.com/utakatalp/volley-simulator/internal/ratelimit"
	"github.com/utakatalp/volley-simulator/internal/results"
	"github.com/utakatalp/volley-simulator/internal/scenario"
	"github.com/utakatalp/volley-simulator/internal/scheduler"
	"github.com/utakatalp/volley-simulator/internal/scrape"
	"github.com/utakatalp/volley-simulator/internal/store"
)

const shutdownTimeout = 30 * time.Second

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// importData loads every league file into the store. Leagues without a file
// keep whatever the store already holds.
func importData(ctx context.Context, cfg *config.Config, st *store.Store) error {
	for _, lc := range cfg.Leagues {
		path := cfg.DataPath(lc)
		data, err := datafile.Load(path, lc)
		if errors.Is(err, datafile.ErrNotFound) {
			log.Warn().Str("league", lc.ID).Str("path", path).Msg("No data file, skipping import")
			continue
		}
		if err != nil {
			return err
		}
		if err := st.ImportLeague(ctx, lc.ID, data.Teams, data.Fixture); err != nil {
			return fmt.Errorf("importing %s: %w", lc.ID, err)
		}
		log.Info().
			Str("league", lc.ID).
			Int("teams", len(data.Teams)).
			Int("matches", len(data.Fixture)).
			Msg("League data imported")
	}
	return nil
}

func originChecker(cfg *config.Config) func(*http.Request) bool {
	if cfg.IsDevelopment() || len(cfg.App.AllowedOrigins) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(cfg.App.AllowedOrigins, origin)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer st.Close()

	if err := importData(ctx, cfg, st); err != nil {
		log.Fatal().Err(err).Msg("Failed to import league data")
	}

	hub := live.NewHub(originChecker(cfg))
	limiter := ratelimit.New(&ratelimit.Config{
		Requests:   cfg.RateLimit.Requests,
		Window:     cfg.RateLimit.Window,
		TrustProxy: cfg.RateLimit.TrustProxy,
	})
	syncer := results.NewSyncer(cfg, st, scrape.NewFetcher(), hub)

	sched, err := scheduler.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	if cfg.Scheduler.ResultsSyncCron != "" {
		if err := scheduler.RegisterResultsSync(sched, syncer, cfg.Scheduler.ResultsSyncCron); err != nil {
			log.Fatal().Err(err).Msg("Failed to register results sync job")
		}
	}

	srv := api.NewServer(api.Options{
		Config:      cfg,
		Scenarios:   scenario.NewService(cfg, st, st),
		Fixtures:    st,
		Predictions: st,
		Stats:       st,
		Results:     syncer,
		Limiter:     limiter,
		Live:        hub,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("driver", st.Driver()).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sched.Start()
		<-ctx.Done()
		return sched.Stop()
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		hub.Close()
		limiter.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
