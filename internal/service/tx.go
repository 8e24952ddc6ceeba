package service

import (
	"context"

	"github.com/cloo-solutions/licitai/internal/domain"
)

// DocumentWriterInterface is the write side of the document store.
type DocumentWriterInterface interface {
	InsertBatch(ctx context.Context, docs []domain.Document) (int, error)
	Truncate(ctx context.Context) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Documents() DocumentWriterInterface
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
