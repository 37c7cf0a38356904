package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/api"
	"shopassist.dev/assistant/internal/behavior"
	"shopassist.dev/assistant/internal/config"
	"shopassist.dev/assistant/internal/core"
	"shopassist.dev/assistant/internal/images"
	"shopassist.dev/assistant/internal/kv"
	"shopassist.dev/assistant/internal/llm"
	"shopassist.dev/assistant/internal/metrics"
	"shopassist.dev/assistant/internal/search"
	"shopassist.dev/assistant/internal/session"
	"shopassist.dev/assistant/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	cfg := config.AppConfig

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sessionBackend, behaviorBackend, closeBackends, err := newBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackends()

	sessions := session.NewStore(sessionBackend, logger, session.WithMetrics(m))
	tracker := behavior.NewTracker(behaviorBackend, logger, m)

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer dbStore.Close()

	searcher, err := newSearcher(ctx, cfg, dbStore, logger)
	if err != nil {
		return err
	}
	if c, ok := searcher.(io.Closer); ok {
		defer c.Close()
	}

	completer, closeCompleter, err := llm.NewCompleterFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCompleter()

	imageOpts := []images.Option{images.WithMetrics(m), images.WithGenerateTimeout(cfg.CompletionTimeout)}
	if cfg.ImageGeneration && cfg.OpenAIAPIKey != "" {
		gen, err := images.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err != nil {
			return err
		}
		imageOpts = append(imageOpts, images.WithGenerator(gen))
	}
	imageCache := images.NewCache(logger, imageOpts...)

	quickChat := core.NewQuickChat(completer, cfg.CompletionTimeout, logger, m)
	apiHandler := api.NewAPIHandler(
		core.NewConversationService(sessions, completer, cfg.CompletionTimeout, logger, m),
		core.NewRecommendationService(tracker, completer, cfg.CompletionTimeout, logger, m),
		core.NewSearchService(searcher, imageCache, quickChat, logger, m),
		cfg.JWTSecret,
		cfg.SessionRetention,
		logger,
	)

	janitor := core.NewJanitor(cfg.SessionRetention, logger, map[string]core.Purger{
		"sessions": sessions,
		"behavior": tracker,
	})
	if err := janitor.Start(cfg.SweepSchedule); err != nil {
		return err
	}

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      api.NewRouter(apiHandler, reg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // completion calls can take time
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr),
			zap.String("llm_provider", cfg.LLMProvider), zap.String("search_backend", cfg.SearchBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	case <-ctx.Done():
	}
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	janitor.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exiting gracefully")
	return nil
}

func newBackends(ctx context.Context, cfg config.Config) (kv.Backend[session.Session], kv.Backend[behavior.Profile], func(), error) {
	if cfg.SessionBackend != "redis" {
		return kv.NewMemory[session.Session](), kv.NewMemory[behavior.Profile](), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
	}

	sessions, err := kv.NewRedis[session.Session](client, "shopassist:session:", cfg.SessionRetention,
		kv.WithTTLFunc(session.Expiry(cfg.SessionRetention)))
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}
	profiles, err := kv.NewRedis[behavior.Profile](client, "shopassist:behavior:", cfg.SessionRetention)
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}
	return sessions, profiles, func() { client.Close() }, nil
}

// newSearcher builds the configured search backend. The local index is
// filled from the catalog database and, with WATCH_CATALOG, kept in sync
// with the catalog file until ctx is done.
func newSearcher(ctx context.Context, cfg config.Config, dbStore *store.SQLiteStore, logger *zap.Logger) (search.Searcher, error) {
	if cfg.SearchBackend == "elastic" {
		return search.NewElasticSearcher(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, cfg.ElasticsearchAPIKey)
	}

	b, err := search.NewBleveSearcher(logger)
	if err != nil {
		return nil, err
	}

	if n, err := dbStore.CountProducts(ctx); err == nil && n == 0 {
		if _, statErr := os.Stat(cfg.CatalogPath); statErr == nil {
			if _, err := dbStore.IngestCatalogFromFile(ctx, cfg.CatalogPath); err != nil {
				logger.Warn("Initial catalog ingestion failed", zap.Error(err))
			}
		}
	}
	if err := search.LoadFromCatalog(ctx, dbStore, b); err != nil {
		return nil, err
	}

	if cfg.WatchCatalog {
		w := search.NewWatcher(cfg.CatalogPath, dbStore, b, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("Catalog watcher stopped", zap.Error(err))
			}
		}()
	}
	return b, nil
}
