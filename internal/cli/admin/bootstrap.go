package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/licitai/internal/config"
	"github.com/cloo-solutions/licitai/internal/database"
	"github.com/cloo-solutions/licitai/internal/logger"
	"github.com/cloo-solutions/licitai/internal/openai"
	"github.com/cloo-solutions/licitai/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// loadRuntime reads the environment config and builds the process logger.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openPool connects to Postgres and, unless skipMigrations is set, applies
// pending migrations first.
func openPool(ctx context.Context, cfg *config.Config, log *zap.Logger, skipMigrations bool) (*pgxpool.Pool, error) {
	if !skipMigrations {
		if err := database.RunMigrations(cfg.DatabaseURL, database.DefaultMigrationsSource, log); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("connected to database", zap.String("table", cfg.TableName))
	return pool, nil
}

// newS3Client returns nil when object storage is not configured.
func newS3Client(ctx context.Context, cfg *config.Config) (*storage.S3Client, error) {
	if !cfg.HasS3() {
		return nil, nil
	}
	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return client, nil
}

func newModelClient(cfg *config.Config) (*openai.Client, error) {
	if !cfg.HasLLM() {
		return nil, openai.ErrNoAPIKey
	}
	return openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.LLMAPIKey,
		BaseURL:             cfg.LLMBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDims,
	}), nil
}
