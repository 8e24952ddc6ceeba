//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/service"
	"github.com/cloo-solutions/licitai/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(hot int) []float32 {
	v := make([]float32, domain.EmbeddingDimensions)
	v[hot] = 1
	return v
}

func seedDocuments(ctx context.Context, t *testing.T, pool *pgxpool.Pool) *DocumentRepository {
	t.Helper()
	repo := NewDocumentRepository(pool, "")
	docs := []domain.Document{
		{
			Content:   "codigo de oferta: OF-24-001. cliente: Minera Sur. estado de oferta: PENDIENTE",
			Metadata:  map[string]string{"id_excel": "1", "codigo de oferta": "OF-24-001", "cliente": "Minera Sur", "estado de oferta": "PENDIENTE"},
			Embedding: unitVector(0),
		},
		{
			Content:   "codigo de oferta: SZ-17_3. cliente: Agro Norte. estado de oferta: ADJUDICADO",
			Metadata:  map[string]string{"id_excel": "2", "codigo de oferta": "SZ-17_3", "cliente": "Agro Norte", "estado de oferta": "ADJUDICADO"},
			Embedding: unitVector(1),
		},
		{
			Content:   "codigo de oferta: SZ-1703. cliente: Agro Norte. estado de oferta: NO ADJUDICADO",
			Metadata:  map[string]string{"id_excel": "3", "codigo de oferta": "SZ-1703", "cliente": "Agro Norte", "estado de oferta": "NO ADJUDICADO"},
			Embedding: unitVector(2),
		},
	}
	n, err := repo.InsertBatch(ctx, docs)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return repo
}

func TestDocumentRepository(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	t.Run("sample metadata", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		repo := seedDocuments(ctx, t, pool)

		sample, err := repo.SampleMetadata(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, sample, 2)
		assert.Contains(t, sample[0], "codigo de oferta")
	})

	t.Run("ilike treats wildcards literally", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		repo := seedDocuments(ctx, t, pool)

		docs, err := repo.FilterMetadataILike(ctx, "codigo de oferta", "sz-17_3")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "SZ-17_3", docs[0].Metadata["codigo de oferta"])

		docs, err = repo.FilterMetadataILike(ctx, "codigo de oferta", "of-24")
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("equal", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		repo := seedDocuments(ctx, t, pool)

		docs, err := repo.FilterMetadataEqual(ctx, "id_excel", "3")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "NO ADJUDICADO", docs[0].Metadata["estado de oferta"])
	})

	t.Run("vector search respects threshold", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		repo := seedDocuments(ctx, t, pool)

		docs, err := repo.VectorSearch(ctx, unitVector(1), 0.45, 5)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "SZ-17_3", docs[0].Metadata["codigo de oferta"])
		assert.InDelta(t, 1.0, docs[0].Similarity, 1e-6)
	})

	t.Run("read query returns rows", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		repo := seedDocuments(ctx, t, pool)

		rows, err := repo.ExecuteReadQuery(ctx,
			`SELECT metadata->>'cliente' AS cliente, count(*) AS total FROM documentos_dj GROUP BY 1 ORDER BY 2 DESC`)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Agro Norte", rows[0]["cliente"])
		assert.EqualValues(t, 2, rows[0]["total"])
	})

	t.Run("read query with no rows is empty", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		repo := seedDocuments(ctx, t, pool)

		rows, err := repo.ExecuteReadQuery(ctx, `SELECT id FROM documentos_dj WHERE false`)
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("read query cannot write", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		repo := seedDocuments(ctx, t, pool)

		_, err := repo.ExecuteReadQuery(ctx, `DELETE FROM documentos_dj RETURNING id`)
		assert.Error(t, err)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("tx runner rolls back failed batches", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		runner := NewTxRunner(pool, "")

		err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
			if _, err := repos.Documents().InsertBatch(ctx, []domain.Document{{Content: "cliente: Uno"}}); err != nil {
				return err
			}
			return fmt.Errorf("abort")
		})
		assert.Error(t, err)

		n, err := NewDocumentRepository(pool, "").Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, runner.WithTx(ctx, func(repos service.TxRepositories) error {
			_, err := repos.Documents().InsertBatch(ctx, []domain.Document{{Content: "cliente: Dos", Metadata: map[string]string{"cliente": "Dos"}}})
			return err
		}))
		n, err = NewDocumentRepository(pool, "").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("truncate resets", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		repo := seedDocuments(ctx, t, pool)

		require.NoError(t, repo.Truncate(ctx))
		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
