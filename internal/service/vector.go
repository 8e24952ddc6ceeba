package service

import (
	"context"

	"github.com/cloo-solutions/licitai/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultVectorThreshold = 0.45
	DefaultVectorLimit     = 5
)

// VectorSearcher finds semantically similar documents above a threshold.
type VectorSearcher struct {
	repo      DocumentRepositoryInterface
	embedding EmbeddingServiceInterface
	threshold float64
	limit     int
	logger    *zap.Logger
}

func NewVectorSearcher(repo DocumentRepositoryInterface, embedding EmbeddingServiceInterface, threshold float64, limit int, logger *zap.Logger) *VectorSearcher {
	if threshold <= 0 {
		threshold = DefaultVectorThreshold
	}
	if limit <= 0 {
		limit = DefaultVectorLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorSearcher{repo: repo, embedding: embedding, threshold: threshold, limit: limit, logger: logger}
}

// Match returns an empty list on any embedding or search failure.
func (s *VectorSearcher) Match(ctx context.Context, query string) []domain.EvidenceItem {
	vec, err := s.embedding.GenerateEmbedding(ctx, query)
	if err != nil || len(vec) == 0 {
		s.logger.Warn("Query embedding failed", zap.Error(err))
		return []domain.EvidenceItem{}
	}

	docs, err := s.repo.VectorSearch(ctx, vec, s.threshold, s.limit)
	if err != nil {
		s.logger.Warn("Vector search failed", zap.Error(err))
		return []domain.EvidenceItem{}
	}

	items := make([]domain.EvidenceItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, domain.EvidenceItem{Document: d, Provenance: domain.ProvenanceVector})
	}
	return items
}
