package jobs

import (
	"context"
	"errors"

	"github.com/cloo-solutions/licitai/internal/service"
	"go.uber.org/zap"
)

// SchemaRefresher is the processor that keeps the metadata key cache fresh
// so columns added by a new ingest reach the query synthesizer.
type SchemaRefresher struct {
	cache  SchemaRefreshable
	logger *zap.Logger
	last   int
}

// SchemaRefreshable is satisfied by *service.SchemaCache.
type SchemaRefreshable interface {
	Refresh(ctx context.Context) service.SchemaSnapshot
}

func NewSchemaRefresher(cache SchemaRefreshable, logger *zap.Logger) *SchemaRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaRefresher{cache: cache, logger: logger}
}

// ProcessJobs implements the JobProcessor interface
func (r *SchemaRefresher) ProcessJobs(ctx context.Context) error {
	snap := r.cache.Refresh(ctx)
	if len(snap.Keys) == 0 {
		return errors.New("schema refresh found no metadata keys")
	}
	if len(snap.Keys) != r.last {
		r.logger.Info("schema keys changed", zap.Int("previous", r.last), zap.Int("current", len(snap.Keys)))
		r.last = len(snap.Keys)
	}
	return nil
}
