package service

import (
	"context"

	"github.com/cloo-solutions/licitai/internal/domain"
)

// DocumentRepositoryInterface is the read side of the document store.
type DocumentRepositoryInterface interface {
	SampleMetadata(ctx context.Context, limit int) ([]map[string]string, error)
	FilterMetadataILike(ctx context.Context, key, token string) ([]domain.Document, error)
	FilterMetadataEqual(ctx context.Context, key, value string) ([]domain.Document, error)
	ExecuteReadQuery(ctx context.Context, query string) ([]map[string]any, error)
	VectorSearch(ctx context.Context, embedding []float32, threshold float64, limit int) ([]domain.Document, error)
}

// EmbeddingServiceInterface produces query-time embeddings.
type EmbeddingServiceInterface interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}
