package admin

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/licitai/internal/api/handlers"
	"github.com/cloo-solutions/licitai/internal/cache"
	"github.com/cloo-solutions/licitai/internal/config"
	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/jobs"
	"github.com/cloo-solutions/licitai/internal/kv"
	"github.com/cloo-solutions/licitai/internal/metrics"
	"github.com/cloo-solutions/licitai/internal/repository"
	"github.com/cloo-solutions/licitai/internal/search"
	"github.com/cloo-solutions/licitai/internal/server"
	"github.com/cloo-solutions/licitai/internal/service"
	"github.com/cloo-solutions/licitai/internal/session"
	"github.com/cloo-solutions/licitai/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the licitai API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.HasSentry() {
		// Default to 10% sampling in production, 100% elsewhere
		sampleRate := 0.1
		if cfg.Environment != "prod" && cfg.Environment != "production" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
			Logger:           log,
		})
		if err == nil {
			defer shutdownTelemetry()
		}
	}

	if portFlag, _ := cmd.Flags().GetString("port"); cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	pool, err := openPool(ctx, cfg, log, noMigrate)
	if err != nil {
		return err
	}
	defer pool.Close()

	modelClient, err := newModelClient(cfg)
	if err != nil {
		return err
	}

	var searcher search.Provider
	if cfg.HasSearch() {
		searcher, err = search.NewProvider(search.Config{
			Provider: cfg.SearchProvider,
			APIKey:   cfg.SearchAPIKey,
			APIURL:   cfg.SearchAPIURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create search provider: %w", err)
		}
		log.Info("web search enabled", zap.String("provider", cfg.SearchProvider))
	} else {
		log.Warn("web search not configured, WEB answers rely on the model alone")
	}

	var (
		sessions session.Store                     = session.NewMemoryStore(domain.HistoryWindow)
		embedder service.EmbeddingServiceInterface = modelClient
	)
	if cfg.HasRedis() {
		store, err := kv.NewStore(kv.Config{Addrs: []string{cfg.RedisAddr}, Password: cfg.RedisPassword})
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		sessions = session.NewRedisStore(store, domain.HistoryWindow, cfg.SessionTTL, log)
		embedder = cache.NewCachedEmbedder(modelClient, store, cfg.EmbeddingModel, cfg.EmbedCacheTTL, metrics.EmbeddingCache, log)
		log.Info("redis sessions and embedding cache enabled")
	}

	orchestrator, schemaCache := buildAssistant(cfg, pool, modelClient, searcher, embedder, log)

	refresher := jobs.NewWorker(jobs.NewSchemaRefresher(schemaCache, log), cfg.SchemaRefreshInterval, log)
	go refresher.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		Logger:         log,
		AdminToken:     cfg.AdminToken,
		ChatHandler:    handlers.NewChatHandler(orchestrator, sessions),
		SessionHandler: handlers.NewSessionHandler(sessions),
		SchemaHandler:  handlers.NewSchemaHandler(schemaCache),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("shutting down")

	refresher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

// buildAssistant wires the retrieval and routing chain on top of the store.
func buildAssistant(
	cfg *config.Config,
	pool *pgxpool.Pool,
	client service.CompletionClient,
	searcher search.Provider,
	embedder service.EmbeddingServiceInterface,
	log *zap.Logger,
) (*service.Orchestrator, *service.SchemaCache) {
	docs := repository.NewDocumentRepository(pool, cfg.TableName)

	gateway := service.NewGateway(client, searcher, service.GatewayConfig{
		MaxAttempts:   cfg.ModelMaxAttempts,
		ThrottleDelay: cfg.ModelThrottleDelay,
	}, log)

	schemaCache := service.NewSchemaCache(docs, log)
	exact := service.NewExactMatcher(docs, schemaCache, log)
	vector := service.NewVectorSearcher(docs, embedder, cfg.VectorThreshold, cfg.VectorLimit, log)
	retriever := service.NewHybridRetriever(exact, vector, gateway, cfg.NarrationModel, cfg.ShortQueryWords, log)
	sqlAgent := service.NewSQLAgent(docs, schemaCache, gateway, retriever, service.SQLAgentConfig{
		TableName:      cfg.TableName,
		LogicModel:     cfg.LogicModel,
		NarrationModel: cfg.NarrationModel,
	}, log)
	router := service.NewRouter(gateway, cfg.LogicModel, log)

	orchestrator := service.NewOrchestrator(
		router,
		sqlAgent,
		retriever,
		gateway,
		service.NewTimeContext(cfg.UTCOffsetHours),
		service.OrchestratorConfig{LogicModel: cfg.LogicModel, NarrationModel: cfg.NarrationModel},
		log,
	)
	return orchestrator, schemaCache
}
