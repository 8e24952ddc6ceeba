package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/ingest"
	"github.com/cloo-solutions/licitai/internal/metrics"
	"go.uber.org/zap"
)

// DefaultIngestBatchSize is the number of rows written per transaction.
const DefaultIngestBatchSize = 50

// DocumentEmbedder produces document-side (retrieval document) embeddings.
type DocumentEmbedder interface {
	GenerateDocumentEmbedding(ctx context.Context, text string) ([]float32, error)
}

// RecordSource yields cleaned records until io.EOF.
type RecordSource interface {
	Next() (ingest.Record, error)
}

type IngestOptions struct {
	BatchSize int
	// Truncate empties the document table before loading.
	Truncate bool
}

// IngestStats summarizes a load.
type IngestStats struct {
	Rows          int `json:"rows"`
	Inserted      int `json:"inserted"`
	Skipped       int `json:"skipped"`
	EmbedFailures int `json:"embed_failures"`
	FailedBatches int `json:"failed_batches"`
}

// IngestService embeds records and stores them in batches.
type IngestService struct {
	txRunner TxRunner
	embedder DocumentEmbedder
	logger   *zap.Logger
}

func NewIngestService(txRunner TxRunner, embedder DocumentEmbedder, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{txRunner: txRunner, embedder: embedder, logger: logger}
}

// Ingest reads every record from src. Rows too short to be useful or whose
// embedding fails are skipped; a batch that cannot be written is logged and
// dropped so the rest of the load continues. Only source read errors and
// context cancellation abort the run.
func (s *IngestService) Ingest(ctx context.Context, src RecordSource, opts IngestOptions) (IngestStats, error) {
	var stats IngestStats
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultIngestBatchSize
	}

	if opts.Truncate {
		err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
			return repos.Documents().Truncate(ctx)
		})
		if err != nil {
			return stats, fmt.Errorf("truncate documents: %w", err)
		}
		s.logger.Info("document table truncated")
	}

	batch := make([]domain.Document, 0, size)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read record %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		if !rec.Valid() {
			stats.Skipped++
			metrics.IngestRows.WithLabelValues("skipped").Inc()
			continue
		}

		embedding, err := s.embedder.GenerateDocumentEmbedding(ctx, rec.Content)
		if err != nil {
			stats.EmbedFailures++
			metrics.IngestRows.WithLabelValues("embed_failed").Inc()
			s.logger.Warn("embedding failed, skipping row", zap.Int("row", stats.Rows), zap.Error(err))
			continue
		}

		batch = append(batch, domain.Document{
			Content:   rec.Content,
			Metadata:  rec.Metadata,
			Embedding: embedding,
		})
		if len(batch) >= size {
			s.flush(ctx, batch, &stats)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		s.flush(ctx, batch, &stats)
	}

	s.logger.Info("ingest finished",
		zap.Int("rows", stats.Rows),
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped", stats.Skipped),
		zap.Int("embed_failures", stats.EmbedFailures),
		zap.Int("failed_batches", stats.FailedBatches),
	)
	return stats, nil
}

func (s *IngestService) flush(ctx context.Context, batch []domain.Document, stats *IngestStats) {
	var inserted int
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		n, err := repos.Documents().InsertBatch(ctx, batch)
		inserted = n
		return err
	})
	if err != nil {
		stats.FailedBatches++
		metrics.IngestRows.WithLabelValues("batch_failed").Add(float64(len(batch)))
		s.logger.Error("batch insert failed", zap.Int("size", len(batch)), zap.Error(err))
		return
	}
	stats.Inserted += inserted
	metrics.IngestRows.WithLabelValues("inserted").Add(float64(inserted))
	s.logger.Debug("batch inserted", zap.Int("size", inserted), zap.Int("total", stats.Inserted))
}
