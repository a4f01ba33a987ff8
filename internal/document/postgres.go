package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docchat/docchat/internal/log"
)

const uniqueViolation = "23505"

// Postgres is a Registry backed by the documents table.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres creates a registry on the given pool. The schema must
// already be migrated.
func NewPostgres(pool *pgxpool.Pool, logger log.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

// Register adds a document in StatusProcessing.
func (p *Postgres) Register(ctx context.Context, doc Document) error {
	side, err := encodeSideData(doc.SideData)
	if err != nil {
		return fmt.Errorf("register %q: %w", doc.ID, err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO documents (id, filename, status, pages, chunks, error, side_data)
		 VALUES ($1, $2, $3, $4, 0, '', $5)`,
		doc.ID, doc.Filename, string(StatusProcessing), doc.Pages, side)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("register %q: %w", doc.ID, ErrExists)
		}
		return fmt.Errorf("register %q: %w", doc.ID, err)
	}

	p.logger.Debug("document registered", "doc_id", doc.ID, "filename", doc.Filename)
	return nil
}

// Get returns the document with the given id.
func (p *Postgres) Get(ctx context.Context, id string) (Document, error) {
	var doc Document
	var status string
	var side []byte
	err := p.pool.QueryRow(ctx,
		`SELECT id, filename, status, pages, chunks, error, side_data, created_at, updated_at
		 FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.Filename, &status, &doc.Pages, &doc.Chunks,
			&doc.Error, &side, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
		}
		return Document{}, fmt.Errorf("get %q: %w", id, err)
	}
	doc.Status = Status(status)
	if doc.SideData, err = decodeSideData(side); err != nil {
		return Document{}, fmt.Errorf("get %q: %w", id, err)
	}
	return doc, nil
}

// List returns all documents ordered by creation time, oldest first.
func (p *Postgres) List(ctx context.Context) ([]Document, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, filename, status, pages, chunks, error, side_data, created_at, updated_at
		 FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var status string
		var side []byte
		if err := rows.Scan(&doc.ID, &doc.Filename, &status, &doc.Pages,
			&doc.Chunks, &doc.Error, &side, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list documents: scan: %w", err)
		}
		doc.Status = Status(status)
		if doc.SideData, err = decodeSideData(side); err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// SetStatus transitions the document to the given status.
func (p *Postgres) SetStatus(ctx context.Context, id string, status Status, chunks int, failure string) error {
	if status != StatusFailed {
		failure = ""
	}
	if status != StatusReady {
		chunks = 0
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE documents
		 SET status = $2, chunks = $3, error = $4, updated_at = now()
		 WHERE id = $1`,
		id, string(status), chunks, failure)
	if err != nil {
		return fmt.Errorf("set status %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set status %q: %w", id, ErrNotFound)
	}

	p.logger.Debug("document status changed", "doc_id", id, "status", string(status))
	return nil
}

// encodeSideData serializes the per-page side-data array for the JSONB
// column. Nil stays NULL so documents without side-data cost nothing.
func encodeSideData(side []json.RawMessage) ([]byte, error) {
	if side == nil {
		return nil, nil
	}
	data, err := json.Marshal(side)
	if err != nil {
		return nil, fmt.Errorf("encode side data: %w", err)
	}
	return data, nil
}

func decodeSideData(data []byte) ([]json.RawMessage, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var side []json.RawMessage
	if err := json.Unmarshal(data, &side); err != nil {
		return nil, fmt.Errorf("decode side data: %w", err)
	}
	return side, nil
}

// Remove deletes the document record. Absent ids are a no-op.
func (p *Postgres) Remove(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove %q: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		p.logger.Debug("document removed", "doc_id", id)
	}
	return nil
}
