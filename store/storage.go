package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"finrag/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type DBStorer interface {
	SaveDocument(context.Context, types.Document) error
	UpdateDocument(context.Context, types.Document) error
	GetDocumentByID(context.Context, uuid.UUID) (*types.Document, error)
	GetDocumentByHash(context.Context, string) (*types.Document, error)
	ListDocuments(context.Context) ([]types.Document, error)
	DeleteDocument(context.Context, uuid.UUID) error
	SaveMetrics(context.Context, []types.FinancialMetric) error
	MetricsByYear(context.Context, uuid.UUID) (types.MetricsByYear, error)
	SaveChunks(context.Context, []types.Chunk) error
	// SearchChunks returns the top-k chunks of one document by cosine
	// similarity to the query vector, ties broken by ascending ordinal.
	// Chunks of other documents are never returned.
	SearchChunks(ctx context.Context, docID uuid.UUID, queryVec []float32, limit int) ([]types.Chunk, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) Init(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		filename TEXT NOT NULL,
		storage_path TEXT,
		company_name TEXT,
		fiscal_year TEXT,
		content_hash TEXT UNIQUE,
		is_financial BOOLEAN DEFAULT FALSE,
		status TEXT CHECK (status IN ('pending','processed','failed')),
		created_at TIMESTAMP WITH TIME ZONE,
		processed_at TIMESTAMP WITH TIME ZONE
	);

	CREATE TABLE IF NOT EXISTS financial_metrics (
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		year INT NOT NULL,
		metric_name TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		unit TEXT DEFAULT 'INR',
		PRIMARY KEY (document_id, year, metric_name)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		doc_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		ordinal INT NOT NULL,
		page INT,
		content TEXT NOT NULL,
		embedding vector(1536)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
	CREATE INDEX IF NOT EXISTS idx_metrics_doc_id ON financial_metrics(document_id);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) SaveDocument(ctx context.Context, doc types.Document) error {
	query := `INSERT INTO documents (id, filename, storage_path, company_name, fiscal_year, content_hash, is_financial, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := p.pool.Exec(
		ctx,
		query,
		doc.ID,
		doc.Filename,
		doc.StoragePath,
		doc.CompanyName,
		doc.FiscalYear,
		doc.ContentHash,
		doc.IsFinancial,
		doc.Status,
		doc.CreatedAt,
	)
	return err
}

func (p *PostgresStore) UpdateDocument(ctx context.Context, doc types.Document) error {
	query := `UPDATE documents SET
			company_name = $2,
			fiscal_year = $3,
			is_financial = $4,
			status = $5,
			processed_at = $6
		WHERE id = $1`
	var processedAt any
	if !doc.ProcessedAt.IsZero() {
		processedAt = doc.ProcessedAt
	}
	_, err := p.pool.Exec(ctx, query,
		doc.ID, doc.CompanyName, doc.FiscalYear, doc.IsFinancial, doc.Status, processedAt,
	)
	return err
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	return p.getDocument(ctx, "SELECT id, filename, storage_path, company_name, fiscal_year, content_hash, is_financial, status, created_at, processed_at FROM documents WHERE id = $1", docID)
}

func (p *PostgresStore) GetDocumentByHash(ctx context.Context, hash string) (*types.Document, error) {
	return p.getDocument(ctx, "SELECT id, filename, storage_path, company_name, fiscal_year, content_hash, is_financial, status, created_at, processed_at FROM documents WHERE content_hash = $1", hash)
}

func (p *PostgresStore) getDocument(ctx context.Context, query string, arg any) (*types.Document, error) {
	rows, err := p.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, sql.ErrNoRows
	}

	doc := &types.Document{}
	var processedAt *time.Time
	if err := rows.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.StoragePath,
		&doc.CompanyName,
		&doc.FiscalYear,
		&doc.ContentHash,
		&doc.IsFinancial,
		&doc.Status,
		&doc.CreatedAt,
		&processedAt); err != nil {
		return nil, err
	}
	if processedAt != nil {
		doc.ProcessedAt = *processedAt
	}
	return doc, nil
}

func (p *PostgresStore) ListDocuments(ctx context.Context) ([]types.Document, error) {
	query := `SELECT id, filename, storage_path, company_name, fiscal_year, content_hash, is_financial, status, created_at, processed_at
		FROM documents
		WHERE is_financial = TRUE AND status = 'processed'
		ORDER BY created_at DESC`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var doc types.Document
		var processedAt *time.Time
		if err := rows.Scan(
			&doc.ID,
			&doc.Filename,
			&doc.StoragePath,
			&doc.CompanyName,
			&doc.FiscalYear,
			&doc.ContentHash,
			&doc.IsFinancial,
			&doc.Status,
			&doc.CreatedAt,
			&processedAt); err != nil {
			return nil, err
		}
		if processedAt != nil {
			doc.ProcessedAt = *processedAt
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) DeleteDocument(ctx context.Context, docID uuid.UUID) error {
	// metrics and chunks go with it via ON DELETE CASCADE
	_, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", docID)
	return err
}

func (p *PostgresStore) SaveMetrics(ctx context.Context, metrics []types.FinancialMetric) error {
	query := `INSERT INTO financial_metrics (document_id, year, metric_name, value, unit)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, year, metric_name) DO UPDATE SET
			value = EXCLUDED.value,
			unit = EXCLUDED.unit`
	for _, m := range metrics {
		if _, err := p.pool.Exec(ctx, query, m.DocumentID, m.Year, m.Name, m.Value, m.Unit); err != nil {
			return fmt.Errorf("error saving metric %s/%d: %w", m.Name, m.Year, err)
		}
	}
	return nil
}

func (p *PostgresStore) MetricsByYear(ctx context.Context, docID uuid.UUID) (types.MetricsByYear, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT year, metric_name, value FROM financial_metrics WHERE document_id = $1", docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byYear := types.MetricsByYear{}
	for rows.Next() {
		var year int
		var name string
		var value float64
		if err := rows.Scan(&year, &name, &value); err != nil {
			return nil, err
		}
		if byYear[year] == nil {
			byYear[year] = map[string]float64{}
		}
		byYear[year][name] = value
	}
	return byYear, rows.Err()
}

func (p *PostgresStore) SaveChunks(ctx context.Context, chunks []types.Chunk) error {
	query := `INSERT INTO chunks (id, doc_id, ordinal, page, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, c := range chunks {
		_, err := p.pool.Exec(ctx, query,
			c.ID, c.DocID, c.Ordinal, c.Page, c.Content, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("error saving chunk %d: %w", c.Ordinal, err)
		}
	}
	return nil
}

func (p *PostgresStore) SearchChunks(ctx context.Context, docID uuid.UUID, queryVec []float32, limit int) ([]types.Chunk, error) {
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	vector := pgvector.NewVector(queryVec)

	query := `
		SELECT id, doc_id, ordinal, page, content, 1 - (embedding <=> $2) AS similarity
		FROM chunks
		WHERE doc_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2, ordinal
		LIMIT $3
	`
	rows, err := p.pool.Query(ctx, query, docID, vector, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocID,
			&chunk.Ordinal,
			&chunk.Page,
			&chunk.Content,
			&chunk.Similarity); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
