package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"

	"github.com/cloo-solutions/licitai/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the embedding model served by the Gemini OpenAI-compatible endpoint
	DefaultEmbeddingModel = "text-embedding-004"
	// DefaultEmbeddingDimensions matches the vector(768) column
	DefaultEmbeddingDimensions = domain.EmbeddingDimensions
	// DefaultBaseURL is the Gemini OpenAI-compatible endpoint
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when the API key is not set
	ErrNoAPIKey = errors.New("LICITAI_LLM_API_KEY environment variable not set")
	// ErrEmptyCompletion is returned when the model answers with no choices
	ErrEmptyCompletion = errors.New("no completion choices returned")
)

// EmbeddingAPI defines the interface for embedding generation.
// dimensions <= 0 leaves the output size to the model.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string, dimensions int) ([]float32, error)
}

// ChatAPI defines the interface for single-prompt chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, model, prompt string) (string, error)
}

// Client wraps an OpenAI-compatible API
type Client struct {
	api        EmbeddingAPI
	chat       ChatAPI
	dimensions int
}

type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(apiKey, baseURL string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// CreateEmbeddings calls the API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string, dimensions int) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	}
	if dimensions > 0 {
		req.Dimensions = dimensions
	}

	resp, err := a.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateChatCompletion sends the prompt as a single user message
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, model, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
}

// NewClient creates a new client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey, BaseURL: DefaultBaseURL})
}

// NewClientWithConfig creates a new client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	adapter := NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, cfg.EmbeddingModel)
	return &Client{
		api:        adapter,
		chat:       adapter,
		dimensions: dimensions,
	}
}

// NewClientFromEnv creates a new client using the LICITAI_LLM_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("LICITAI_LLM_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding embeds query text. No task hint is sent; the size is checked.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", classifyError(err))
	}

	if len(embedding) != c.expectedDimensions() {
		return nil, ErrWrongDimensions
	}

	return embedding, nil
}

// GenerateDocumentEmbedding embeds ingestion text with an explicit output size
// and L2-normalizes the result.
func (c *Client) GenerateDocumentEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text, c.expectedDimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", classifyError(err))
	}

	if len(embedding) != c.expectedDimensions() {
		return nil, ErrWrongDimensions
	}

	return Normalize(embedding), nil
}

// Complete runs a chat completion. Throttling responses wrap domain.ErrThrottled.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyText
	}

	text, err := c.chat.CreateChatCompletion(ctx, model, prompt)
	if err != nil {
		return "", classifyError(err)
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) expectedDimensions() int {
	if c.dimensions <= 0 {
		return DefaultEmbeddingDimensions
	}
	return c.dimensions
}

// Normalize scales v to unit length. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

// IsThrottle reports whether err is a provider rate-limit signal.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrThrottled) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func classifyError(err error) error {
	if IsThrottle(err) && !errors.Is(err, domain.ErrThrottled) {
		return fmt.Errorf("%w: %w", domain.ErrThrottled, err)
	}
	return err
}
