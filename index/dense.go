package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// denseStore wraps the sqlite-vec database holding document
// embeddings. Rowids are 1-based document positions so the dense side
// stays aligned with the in-memory document list.
type denseStore struct {
	db  *sql.DB
	dim int
}

func openDenseStore(path string, dim int) (*denseStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening dense index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging dense index: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(
    doc_pos INTEGER PRIMARY KEY,
    embedding float[%d]
);`, dim)
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec table: %w", err)
	}

	return &denseStore{db: db, dim: dim}, nil
}

func (d *denseStore) close() error {
	return d.db.Close()
}

// insert stores an embedding at a 1-based document position.
func (d *denseStore) insert(ctx context.Context, pos int, embedding []float32) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_documents (doc_pos, embedding) VALUES (?, ?)",
		pos, serializeFloat32(embedding))
	return err
}

// knnHit is one nearest-neighbor row: a 1-based document position and
// its L2 distance from the query.
type knnHit struct {
	pos      int
	distance float64
}

// knn returns the k nearest documents by L2 distance, closest first.
func (d *denseStore) knn(ctx context.Context, query []float32, k int) ([]knnHit, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT doc_pos, distance
		FROM vec_documents
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, serializeFloat32(query), k)
	if err != nil {
		return nil, fmt.Errorf("knn query: %w", err)
	}
	defer rows.Close()

	var hits []knnHit
	for rows.Next() {
		var h knnHit
		if err := rows.Scan(&h.pos, &h.distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// count returns the number of stored embeddings.
func (d *denseStore) count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vec_documents").Scan(&n)
	return n, err
}

// rebuild drops all rows and reinserts embeddings from the document
// list, used when dense.db and documents.json have drifted apart.
func (d *denseStore) rebuild(ctx context.Context, docs []Document) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM vec_documents"); err != nil {
		return fmt.Errorf("clearing vec table: %w", err)
	}
	for i, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}
		if err := d.insert(ctx, i+1, doc.Embedding); err != nil {
			return fmt.Errorf("reinserting embedding %d: %w", i+1, err)
		}
	}
	return nil
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
