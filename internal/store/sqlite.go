package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"coursenav/internal/domain"
)

func init() {
	sqlite_vec.Auto()
}

const metaDimensionsKey = "dimensions"

// SQLiteIndex implements Index backed by SQLite + sqlite-vec.
type SQLiteIndex struct {
	db  *sql.DB
	dim int
}

// OpenSQLite creates or opens the index database at path. The vector table
// is declared with the given dimensionality; opening an existing database
// built for a different dimensionality fails with ErrIndexCorrupt so the
// caller can rebuild rather than mix incompatible vectors.
func OpenSQLite(path string, dimensions int) (*SQLiteIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: vector dimensionality must be positive, got %d", domain.ErrConfig, dimensions)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &SQLiteIndex{db: db, dim: dimensions}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", domain.ErrIndexCorrupt, err)
	}
	if err := s.checkDimensions(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteIndex) initSchema() error {
	ddl := fmt.Sprintf(`
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS documents (
    id         TEXT PRIMARY KEY,
    indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chunks (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    chunk_key TEXT NOT NULL UNIQUE,
    doc_id    TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    chunk_idx INTEGER NOT NULL,
    start_off INTEGER NOT NULL,
    end_off   INTEGER NOT NULL,
    content   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`, s.dim)
	_, err := s.db.Exec(ddl)
	return err
}

// checkDimensions records the dimensionality on first open and rejects a
// mismatch afterwards.
func (s *SQLiteIndex) checkDimensions() error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", metaDimensionsKey).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.Exec(
			"INSERT INTO meta (key, value) VALUES (?, ?)",
			metaDimensionsKey, strconv.Itoa(s.dim),
		)
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: read meta: %v", domain.ErrIndexCorrupt, err)
	}
	if stored != strconv.Itoa(s.dim) {
		return fmt.Errorf("%w: index built for %s dimensions, embedder produces %d", domain.ErrIndexCorrupt, stored, s.dim)
	}
	return nil
}

func (s *SQLiteIndex) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.upsertTx(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

// Replace swaps a document's records in one transaction, so concurrent
// readers see either the old version or the new one, never the gap
// between delete and upsert.
func (s *SQLiteIndex) Replace(ctx context.Context, docID string, records []domain.EmbeddingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.deleteDocumentTx(ctx, tx, docID); err != nil {
		return err
	}
	if err := s.upsertTx(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) upsertTx(ctx context.Context, tx *sql.Tx, records []domain.EmbeddingRecord) error {
	for _, r := range records {
		if len(r.Vector) != s.dim {
			return fmt.Errorf("%w: chunk %s: vector has %d dimensions, index expects %d", domain.ErrInputRejected, r.Key(), len(r.Vector), s.dim)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO documents (id) VALUES (?) ON CONFLICT(id) DO UPDATE SET indexed_at = CURRENT_TIMESTAMP",
			r.DocumentID,
		); err != nil {
			return err
		}

		// RETURNING covers both the insert and the conflict path, where
		// LastInsertId would report a stale rowid.
		var chunkID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO chunks (chunk_key, doc_id, chunk_idx, start_off, end_off, content)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_key) DO UPDATE SET
				doc_id = excluded.doc_id,
				chunk_idx = excluded.chunk_idx,
				start_off = excluded.start_off,
				end_off = excluded.end_off,
				content = excluded.content
			RETURNING id
		`, r.Key(), r.DocumentID, r.Index, r.Start, r.End, r.Text).Scan(&chunkID)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", r.Key(), err)
		}

		blob, err := sqlite_vec.SerializeFloat32(r.Vector)
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %s: %w", r.Key(), err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_id = ?", chunkID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)", chunkID, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %s: %w", r.Key(), err)
		}
	}
	return nil
}

func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d", len(vector), s.dim)
	}
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	// vec0 KNN queries accept ORDER BY distance and nothing else. The
	// tie-break on chunk id happens in Go, as does the join back to the
	// chunks table, since either one in SQL breaks the vec0 query plan.
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, distance
		FROM vec_chunks
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, blob, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type hit struct {
		chunkID  int64
		distance float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.chunkID, &h.distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].chunkID < hits[j].chunkID
	})

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		var r domain.SearchResult
		err := s.db.QueryRowContext(ctx,
			"SELECT doc_id, chunk_idx, start_off, end_off, content FROM chunks WHERE id = ?", h.chunkID,
		).Scan(&r.DocumentID, &r.Index, &r.Start, &r.End, &r.Text)
		if err != nil {
			return nil, err
		}
		r.Score = 1 - h.distance
		results = append(results, r)
	}
	return results, nil
}

func (s *SQLiteIndex) DeleteByDocument(ctx context.Context, docID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.deleteDocumentTx(ctx, tx, docID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) deleteDocumentTx(ctx context.Context, tx *sql.Tx, docID string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM vec_chunks WHERE chunk_id IN (SELECT id FROM chunks WHERE doc_id = ?)", docID,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", docID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", docID); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteIndex) DeleteAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
