package symbols

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// VectorStore persists symbol embeddings in a local SQLite database so the
// similarity index survives between runs and the embedding endpoint is only
// paid once per symbol.
type VectorStore struct {
	db *sql.DB
}

// OpenVectorStore opens (creating if needed) the embedding database at the
// given path.
func OpenVectorStore(path string) (*VectorStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS symbol_vectors (
		lib    TEXT NOT NULL,
		name   TEXT NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (lib, name)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate vector store: %w", err)
	}

	return &VectorStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *VectorStore) Close() error {
	return s.db.Close()
}

// Put upserts one symbol vector.
func (s *VectorStore) Put(lib, name string, vector []float32) error {
	_, err := s.db.Exec(
		`INSERT INTO symbol_vectors (lib, name, vector) VALUES (?, ?, ?)
		 ON CONFLICT(lib, name) DO UPDATE SET vector = excluded.vector`,
		lib, name, encodeVector(vector),
	)
	if err != nil {
		return fmt.Errorf("put vector %s:%s: %w", lib, name, err)
	}
	return nil
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM symbol_vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return n, nil
}

// Has reports whether a vector exists for the symbol.
func (s *VectorStore) Has(lib, name string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM symbol_vectors WHERE lib = ? AND name = ?`, lib, name,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe vector %s:%s: %w", lib, name, err)
	}
	return true, nil
}

// StoredVector is one row of the similarity index.
type StoredVector struct {
	Lib    string
	Name   string
	Vector []float32
}

// All returns every stored vector. The index is small enough (tens of
// thousands of rows) that a full scan per query is acceptable.
func (s *VectorStore) All() ([]StoredVector, error) {
	rows, err := s.db.Query(`SELECT lib, name, vector FROM symbol_vectors`)
	if err != nil {
		return nil, fmt.Errorf("scan vectors: %w", err)
	}
	defer rows.Close()

	var out []StoredVector
	for rows.Next() {
		var sv StoredVector
		var blob []byte
		if err := rows.Scan(&sv.Lib, &sv.Name, &blob); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		sv.Vector = decodeVector(blob)
		out = append(out, sv)
	}
	return out, rows.Err()
}

// encodeVector packs float32 values as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
