package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/cupping/internal/adapters/directory"
	"github.com/okian/cupping/internal/adapters/http/api"
	"github.com/okian/cupping/internal/adapters/http/swagger"
	"github.com/okian/cupping/internal/adapters/repository"
	"github.com/okian/cupping/internal/adapters/repository/postgres"
	"github.com/okian/cupping/internal/adapters/repository/postgres/migrate"
	service "github.com/okian/cupping/internal/app"
	"github.com/okian/cupping/internal/config"
	"github.com/okian/cupping/internal/domain/shuffle"
	"github.com/okian/cupping/pkg/logger"
	"github.com/okian/cupping/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout          = 10 * time.Second
	writeTimeout         = 10 * time.Second
	idleTimeout          = 60 * time.Second
	readHeaderTimeout    = 5 * time.Second
	storeMetricsInterval = 15 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Defaults until the configuration is known.
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	metrics.GetRegistry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dir, err := newDirectory(cfg)
	if err != nil {
		return err
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	svc := service.New(
		service.WithStore(store),
		service.WithDirectory(dir),
		service.WithCatalog(dir),
		service.WithShuffler(newShuffler(cfg)),
		service.WithMaxCommentLength(cfg.MaxCommentLength),
	)
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error(ctx, "closing store failed", logger.Error(err))
		}
	}()

	if cfg.Store == config.StorePostgres {
		go startStoreMetricsUpdater(ctx, svc)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.Store),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newStore opens the configured session store, migrating PostgreSQL first
// when asked to.
func newStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Store != config.StorePostgres {
		return repository.NewMemStore(ctx), nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := migrate.Run(ctx, db, logger.Named("migrate")); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return postgres.New(db), nil
}

// newDirectory loads the group and catalog seed, or an empty directory
// when no file is configured.
func newDirectory(cfg *config.Config) (*directory.Memory, error) {
	if cfg.DirectoryFile == "" {
		return directory.New(), nil
	}
	dir, err := directory.Load(cfg.DirectoryFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}
	return dir, nil
}

func newShuffler(cfg *config.Config) *shuffle.Shuffler {
	if cfg.ShuffleSeed == 0 {
		return shuffle.NewRandom()
	}
	return shuffle.New(cfg.ShuffleSeed)
}

// newRouter mounts the business API and the docs. The API installs the
// router middleware, so it goes first.
func newRouter(svc *service.Service) http.Handler {
	r := chi.NewRouter()
	api.NewServer(svc, svc).Register(r)
	swagger.Register(r)
	return r
}

// startStoreMetricsUpdater publishes database record counts until ctx ends.
func startStoreMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(storeMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := svc.Stats(ctx)
			metrics.UpdateStoreRecords("sessions", st.Sessions)
			metrics.UpdateStoreRecords("tests", st.Tests)
			metrics.UpdateStoreRecords("results", st.Results)
		}
	}
}
