package service

import (
	"context"
	"errors"
	"sync"

	"github.com/cloo-solutions/licitai/internal/domain"
)

type testTxRepos struct {
	documents DocumentWriterInterface
}

func (t *testTxRepos) Documents() DocumentWriterInterface {
	return t.documents
}

type testTxRunner struct {
	repos TxRepositories
	calls int
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.calls++
	return fn(t.repos)
}

// memoryWriter records inserted batches and can fail a given batch.
type memoryWriter struct {
	mu        sync.Mutex
	batches   [][]domain.Document
	failBatch int
	truncated bool
	inserts   int
}

func (w *memoryWriter) InsertBatch(_ context.Context, docs []domain.Document) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inserts++
	if w.failBatch == w.inserts {
		return 0, errors.New("duplicate key")
	}
	w.batches = append(w.batches, append([]domain.Document(nil), docs...))
	return len(docs), nil
}

func (w *memoryWriter) Truncate(context.Context) error {
	w.truncated = true
	return nil
}
