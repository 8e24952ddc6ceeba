package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DefaultTable is the document table created by the migrations.
const DefaultTable = "documentos_dj"

// ReadQueryTimeout bounds synthesized queries.
const ReadQueryTimeout = 15 * time.Second

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type DocumentRepository struct {
	db    dbtx
	table string
}

func NewDocumentRepository(pool *pgxpool.Pool, table string) *DocumentRepository {
	return &DocumentRepository{db: pool, table: tableOrDefault(table)}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx, table string) *DocumentRepository {
	return &DocumentRepository{db: tx, table: tableOrDefault(table)}
}

func tableOrDefault(table string) string {
	if table == "" {
		return DefaultTable
	}
	return table
}

func (r *DocumentRepository) ident() string {
	return pgx.Identifier{r.table}.Sanitize()
}

// SampleMetadata returns the metadata of up to limit rows.
func (r *DocumentRepository) SampleMetadata(ctx context.Context, limit int) ([]map[string]string, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT metadata FROM %s LIMIT $1`, r.ident()),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		meta, err := decodeMetadata(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// FilterMetadataILike finds rows whose metadata field contains token,
// case-insensitively. LIKE wildcards in token match literally.
func (r *DocumentRepository) FilterMetadataILike(ctx context.Context, key, token string) ([]domain.Document, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT id, content, metadata FROM %s
		 WHERE metadata->>$1::text ILIKE '%%' || $2::text || '%%'
		 ORDER BY id`, r.ident()),
		key, likeEscaper.Replace(token),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// FilterMetadataEqual finds rows whose metadata field equals value.
func (r *DocumentRepository) FilterMetadataEqual(ctx context.Context, key, value string) ([]domain.Document, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT id, content, metadata FROM %s
		 WHERE metadata->>$1::text = $2::text
		 ORDER BY id`, r.ident()),
		key, value,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// VectorSearch returns up to limit rows whose cosine similarity to embedding
// is at least threshold, most similar first.
func (r *DocumentRepository) VectorSearch(ctx context.Context, embedding []float32, threshold float64, limit int) ([]domain.Document, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		 FROM %s
		 WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`, r.ident()),
		pgvector.NewVector(embedding), threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		var raw []byte
		if err := rows.Scan(&d.ID, &d.Content, &raw, &d.Similarity); err != nil {
			return nil, err
		}
		if d.Metadata, err = decodeMetadata(raw); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ExecuteReadQuery runs a synthesized statement inside a read-only
// transaction that is always rolled back.
func (r *DocumentRepository) ExecuteReadQuery(ctx context.Context, query string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, ReadQueryTimeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if _, err := tx.Exec(ctx, `SET TRANSACTION READ ONLY`); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL statement_timeout = %d`, ReadQueryTimeout.Milliseconds())); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []map[string]any{}
	}
	return result, nil
}

// InsertBatch stores documents with a single batched round trip.
func (r *DocumentRepository) InsertBatch(ctx context.Context, docs []domain.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (content, metadata, embedding) VALUES ($1, $2, $3)`, r.ident())
	batch := &pgx.Batch{}
	for _, d := range docs {
		meta, err := json.Marshal(metadataOrEmpty(d.Metadata))
		if err != nil {
			return 0, err
		}
		var embedding any
		if len(d.Embedding) > 0 {
			embedding = pgvector.NewVector(d.Embedding)
		}
		batch.Queue(stmt, d.Content, meta, embedding)
	}

	results := r.db.SendBatch(ctx, batch)
	inserted := 0
	for range docs {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, results.Close()
}

// Truncate removes every document and resets the id sequence.
func (r *DocumentRepository) Truncate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, fmt.Sprintf(`TRUNCATE TABLE %s RESTART IDENTITY`, r.ident()))
	return err
}

// Count returns the number of stored documents.
func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, r.ident())).Scan(&n)
	return n, err
}

func scanDocumentRows(rows pgx.Rows) ([]domain.Document, error) {
	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		var raw []byte
		if err := rows.Scan(&d.ID, &d.Content, &raw); err != nil {
			return nil, err
		}
		meta, err := decodeMetadata(raw)
		if err != nil {
			return nil, err
		}
		d.Metadata = meta
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// decodeMetadata flattens a jsonb object into strings. Ingested metadata is
// always textual, but rows written by other tools may carry numbers.
func decodeMetadata(raw []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(raw) == 0 {
		return out, nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	for k, v := range values {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		default:
			b, _ := json.Marshal(val)
			out[k] = string(b)
		}
	}
	return out, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
