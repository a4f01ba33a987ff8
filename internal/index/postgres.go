package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/docchat/docchat/internal/log"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations, used to map duplicate chunk ids to ErrDuplicateChunk.
const uniqueViolation = "23505"

// Postgres is an Index backed by PostgreSQL with the pgvector extension.
// Collections map to rows in the collections table; entries live in the
// chunks table and are searched with the cosine distance operator.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres creates a pgvector-backed index on the given pool. The
// schema must already be migrated.
func NewPostgres(pool *pgxpool.Pool, logger log.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

// Create creates an empty collection for the document.
func (p *Postgres) Create(ctx context.Context, docID string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO collections (doc_id) VALUES ($1)`, docID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create collection %q: %w", docID, ErrCollectionExists)
		}
		return fmt.Errorf("create collection %q: %w", docID, err)
	}

	p.logger.Debug("collection created", "doc_id", docID)
	return nil
}

// Insert adds entries to the document's collection in a single
// transaction, so a failed batch leaves nothing behind.
func (p *Postgres) Insert(ctx context.Context, docID string, entries []Entry) error {
	if err := validateEntries(entries); err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("insert into %q: begin: %w", docID, err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				p.logger.Debug("insert rollback", "doc_id", docID, "error", rbErr)
			}
		}
	}()

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM collections WHERE doc_id = $1)`, docID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("insert into %q: check collection: %w", docID, err)
	}
	if !exists {
		return fmt.Errorf("insert into %q: %w", docID, ErrDocumentNotFound)
	}

	for _, e := range entries {
		_, err = tx.Exec(ctx,
			`INSERT INTO chunks (doc_id, chunk_id, page_num, seq, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			docID, e.ChunkID, e.PageNum, e.Seq, e.Text, pgvector.NewVector(e.Vector))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("insert into %q: chunk %q: %w", docID, e.ChunkID, ErrDuplicateChunk)
			}
			return fmt.Errorf("insert into %q: chunk %q: %w", docID, e.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("insert into %q: commit: %w", docID, err)
	}
	committed = true

	p.logger.Debug("entries inserted", "doc_id", docID, "count", len(entries))
	return nil
}

// Query returns the k entries closest to vector by cosine similarity.
// pgvector's <=> operator yields cosine distance; similarity is 1 - distance.
// Ties are broken by the serial row id, which reflects insertion order.
func (p *Postgres) Query(ctx context.Context, docID string, vector []float32, k int) ([]Result, error) {
	if len(vector) != VectorDimension {
		return nil, fmt.Errorf("query %q: got %d components, want %d: %w",
			docID, len(vector), VectorDimension, ErrDimensionMismatch)
	}

	exists, err := p.Exists(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("query %q: %w", docID, ErrDocumentNotFound)
	}

	if k <= 0 {
		return []Result{}, nil
	}

	rows, err := p.pool.Query(ctx,
		`SELECT chunk_id, page_num, seq, content, embedding,
		        1 - (embedding <=> $2) AS similarity
		 FROM chunks
		 WHERE doc_id = $1
		 ORDER BY embedding <=> $2, id
		 LIMIT $3`,
		docID, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", docID, err)
	}
	defer rows.Close()

	results := make([]Result, 0, k)
	for rows.Next() {
		var r Result
		var vec pgvector.Vector
		if err := rows.Scan(&r.ChunkID, &r.PageNum, &r.Seq, &r.Text, &vec, &r.Similarity); err != nil {
			return nil, fmt.Errorf("query %q: scan: %w", docID, err)
		}
		r.Vector = vec.Slice()
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %q: %w", docID, err)
	}

	return results, nil
}

// Drop removes the collection and its chunks. The chunks table has an
// ON DELETE CASCADE foreign key, so one statement suffices.
func (p *Postgres) Drop(ctx context.Context, docID string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM collections WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("drop collection %q: %w", docID, err)
	}

	if tag.RowsAffected() > 0 {
		p.logger.Debug("collection dropped", "doc_id", docID)
	}
	return nil
}

// Exists reports whether a collection exists for the document.
func (p *Postgres) Exists(ctx context.Context, docID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM collections WHERE doc_id = $1)`, docID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check collection %q: %w", docID, err)
	}
	return exists, nil
}

// Count returns the number of entries in the document's collection.
func (p *Postgres) Count(ctx context.Context, docID string) (int, error) {
	exists, err := p.Exists(ctx, docID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("count %q: %w", docID, ErrDocumentNotFound)
	}

	var count int
	err = p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE doc_id = $1`, docID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", docID, err)
	}
	return count, nil
}
