package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"imagesaver/config"
	"imagesaver/domain/image"
	domainobs "imagesaver/domain/observability"
	"imagesaver/domain/token"
	"imagesaver/infrastructure/database"
	"imagesaver/infrastructure/fetcher"
	"imagesaver/infrastructure/identifier"
	infraobs "imagesaver/infrastructure/observability"
	"imagesaver/infrastructure/repository"
	"imagesaver/infrastructure/storage/fs"
	"imagesaver/internal/handler"
	"imagesaver/internal/server"
	"imagesaver/internal/usecase"
)

func main() {
	cfg := loadConfiguration()

	obs, err := infraobs.Create(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, obs); err != nil {
		obs.Logger.Error("Application stopped with error", "error", err)
		os.Exit(1)
	}
}

// Dependencies holds all initialized infrastructure components
type Dependencies struct {
	db        *database.DB
	tokens    *repository.TokenRepository
	store     *fs.Store
	allocator image.IdentifierAllocator
	fetcher   *fetcher.Client
}

// loadConfiguration loads and validates the application configuration
func loadConfiguration() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func run(ctx context.Context, cfg *config.Config, obs *infraobs.Observability) error {
	logStartup(cfg, obs)

	deps, err := initializeDependencies(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer deps.db.Close()

	srv := buildApplication(cfg, obs, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger, _ := scoped(cfg, obs, "main")
	logger.Info("Application stopped")
	return nil
}

// logStartup logs application startup information
func logStartup(cfg *config.Config, obs *infraobs.Observability) {
	logger, metrics := scoped(cfg, obs, "main")

	logger.Info("Starting application",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
		"storage_root", cfg.Storage.Root,
		"db_driver", cfg.Database.Driver)

	metrics.IncrementCounter("application.starts", nil)
}

// initializeDependencies sets up all infrastructure dependencies
func initializeDependencies(ctx context.Context, cfg *config.Config, obs *infraobs.Observability) (*Dependencies, error) {
	dbLogger, dbMetrics := scoped(cfg, obs, "database")
	db, err := database.Open(ctx, cfg.Database, dbLogger, dbMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	repoLogger, repoMetrics := scoped(cfg, obs, "repository.tokens")
	tokens := repository.NewTokenRepository(db, repoLogger, repoMetrics)
	if _, err := tokens.Provision(ctx, cfg.Access.Tokens, cfg.Access.RevokedTokens); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to provision tokens: %w", err)
	}

	allocator, err := identifier.New(cfg.Storage.IDStrategy)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize identifier allocator: %w", err)
	}

	storeLogger, storeMetrics := scoped(cfg, obs, "storage.fs")
	store, err := fs.NewStore(cfg.Storage.Root, cfg.Storage.MaxImageSize, storeLogger, storeMetrics,
		fs.WithAllocator(allocator))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	fetchLogger, fetchMetrics := scoped(cfg, obs, "client.http")
	client := fetcher.NewClient(fetcher.Options{
		UserAgent:  cfg.Download.UserAgent,
		MaxRetries: cfg.Download.MaxRetries,
	}, fetchLogger, fetchMetrics)

	return &Dependencies{
		db:        db,
		tokens:    tokens,
		store:     store,
		allocator: allocator,
		fetcher:   client,
	}, nil
}

// buildApplication assembles the application layers
func buildApplication(cfg *config.Config, obs *infraobs.Observability, deps *Dependencies) *server.HTTPServer {
	saveLogger, saveMetrics := scoped(cfg, obs, "usecase.save_image")
	save := usecase.NewSaveImage(deps.tokens, deps.allocator, deps.fetcher, deps.store,
		usecase.SaveImageOptions{
			DownloadTimeout: cfg.Download.Timeout,
			UsageMode:       token.UsageMode(cfg.Access.UsageMode),
		}, saveLogger, saveMetrics)

	serveLogger, serveMetrics := scoped(cfg, obs, "usecase.serve_image")
	serve := usecase.NewServeImage(deps.store, deps.tokens, cfg.Access.ServeRequireToken, serveLogger, serveMetrics)

	handlerLogger, handlerMetrics := scoped(cfg, obs, "handler.http")
	handlers := handler.NewHandlers(save, serve, handler.Options{
		PublicHost:     cfg.HTTP.PublicHost,
		MaxRequestSize: cfg.Handler.MaxRequestSize,
	}, handlerLogger, handlerMetrics)

	var metricsHandler http.Handler
	if obs.Registry != nil {
		metricsHandler = promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{})
	}

	serverLogger, serverMetrics := scoped(cfg, obs, "server.http")
	return server.New(handler.NewRouter(handlers, metricsHandler), server.Options{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, serverLogger, serverMetrics)
}

func scoped(cfg *config.Config, obs *infraobs.Observability, component string) (domainobs.Logger, domainobs.Metrics) {
	return domainobs.Scope(obs.Logger, obs.Metrics, cfg.ServiceName, cfg.Version, cfg.Environment, component)
}
