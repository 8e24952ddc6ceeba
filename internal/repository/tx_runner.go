package repository

import (
	"context"

	"github.com/cloo-solutions/licitai/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner provides transactional repositories using a pgx pool.
type TxRunner struct {
	pool  *pgxpool.Pool
	table string
}

func NewTxRunner(pool *pgxpool.Pool, table string) *TxRunner {
	return &TxRunner{pool: pool, table: table}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx, table: r.table}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type txRepos struct {
	tx    pgx.Tx
	table string
}

func (r *txRepos) Documents() service.DocumentWriterInterface {
	return NewDocumentRepositoryWithTx(r.tx, r.table)
}
