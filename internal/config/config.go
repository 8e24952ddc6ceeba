package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	TableName   string `envconfig:"TABLE_NAME" default:"documentos_dj"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	// Any OpenAI-compatible endpoint works; the default targets Gemini.
	LLMAPIKey          string        `envconfig:"LLM_API_KEY"`
	LLMBaseURL         string        `envconfig:"LLM_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	LogicModel         string        `envconfig:"LOGIC_MODEL" default:"gemini-2.5-flash"`
	NarrationModel     string        `envconfig:"NARRATION_MODEL" default:"gemini-3-flash-preview"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	EmbeddingDims      int           `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	ModelMaxAttempts   int           `envconfig:"MODEL_MAX_ATTEMPTS" default:"3"`
	ModelThrottleDelay time.Duration `envconfig:"MODEL_THROTTLE_DELAY" default:"25s"`

	VectorThreshold float64 `envconfig:"VECTOR_THRESHOLD" default:"0.45"`
	VectorLimit     int     `envconfig:"VECTOR_LIMIT" default:"5"`
	ShortQueryWords int     `envconfig:"SHORT_QUERY_WORDS" default:"4"`
	UTCOffsetHours  int     `envconfig:"UTC_OFFSET_HOURS" default:"-5"`

	SchemaRefreshInterval time.Duration `envconfig:"SCHEMA_REFRESH_INTERVAL" default:"10m"`

	SearchProvider string `envconfig:"SEARCH_PROVIDER" default:"tavily"`
	SearchAPIKey   string `envconfig:"SEARCH_API_KEY"`
	SearchAPIURL   string `envconfig:"SEARCH_API_URL"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	EmbedCacheTTL time.Duration `envconfig:"EMBED_CACHE_TTL" default:"168h"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"licitai-ingest"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN string `envconfig:"SENTRY_DSN"`

	// AdminToken protects /admin routes; empty disables them.
	AdminToken string `envconfig:"ADMIN_TOKEN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LICITAI", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasLLM() bool {
	return c.LLMAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

// HasSearch reports whether a web search provider can be built.
// SearXNG needs only a URL, the hosted providers need a key.
func (c *Config) HasSearch() bool {
	if c.SearchProvider == "searxng" {
		return c.SearchAPIURL != ""
	}
	return c.SearchAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
