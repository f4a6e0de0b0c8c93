package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arena-combat/internal/api"
	"arena-combat/internal/catalog"
	"arena-combat/internal/config"
	"arena-combat/internal/game"
	"arena-combat/internal/logging"
	"arena-combat/internal/storage"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file from parent directory, then the current one
	envErr := godotenv.Load("../.env")
	if envErr != nil {
		envErr = godotenv.Load(".env")
	}

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	logger := logging.New(appConfig.Log)
	if envErr != nil {
		logger.Info().Msg("no .env file found, using environment variables only")
	}

	if err := run(appConfig, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func run(appConfig config.AppConfig, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog(appConfig.Catalog, logger)
	if err != nil {
		return err
	}

	// Journal persistence is optional
	var journal api.JournalReader
	var sink game.Sink
	store, err := storage.Open(appConfig.Storage, logger)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		logger.Info().Msg("journal persistence disabled")
	case err != nil:
		return errors.Wrap(err, "open storage")
	default:
		defer store.Close()
		journal = store
		sink = store
	}

	engine := game.NewEngine(appConfig, cat, logger)
	engine.SetHooks(api.MetricsHooks())

	if appConfig.Log.Journal != "" || sink != nil {
		if err := engine.StartEventLog(appConfig.Log.Journal, sink); err != nil {
			logger.Warn().Err(err).Msg("event log disabled")
		} else {
			defer engine.StopEventLog()
		}
	}

	for i := 0; i < appConfig.Simulation.Bots; i++ {
		if _, err := engine.Join(fmt.Sprintf("Bot-%d", i+1), game.JoinOptions{Bot: true}); err != nil {
			logger.Warn().Err(err).Int("spawned", i).Msg("bot spawn stopped")
			break
		}
	}

	engine.Start()
	defer engine.Stop()

	server := api.NewServer(api.ServerConfig{
		App:     appConfig,
		Engine:  engine,
		Catalog: cat,
		Journal: journal,
		Logger:  logger,
	})
	debug := api.StartDebugServer(appConfig.Observability, logger)

	logger.Info().
		Int("port", appConfig.Server.Port).
		Int("tickRate", appConfig.Simulation.TickRate).
		Int("maxPawns", appConfig.Server.MaxPawns).
		Int("bots", appConfig.Simulation.Bots).
		Msg("arena combat server starting")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := server.Start(gctx, fmt.Sprintf(":%d", appConfig.Server.Port))
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				api.UpdateEventLogStats(engine.Stats().EventLog)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if debug != nil {
			debug.Shutdown(shutdownCtx)
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func loadCatalog(cfg config.CatalogConfig, logger zerolog.Logger) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		logger.Info().Msg("using built-in catalog")
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(cfg.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "load catalog %s", cfg.Path)
	}
	logger.Info().Str("path", cfg.Path).Int("definitions", len(cat.Definitions())).Msg("catalog loaded")
	return cat, nil
}
