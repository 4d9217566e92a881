// Package store caches dense embeddings in SQLite keyed by content hash, so
// repeated runs over overlapping batches skip the embedding API. The cache is
// an optimization only; correctness never depends on it.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed embedding cache.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the cache database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "pulse.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		text_hash TEXT NOT NULL,
		model TEXT NOT NULL,
		dims INTEGER NOT NULL,
		vector TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (text_hash, model)
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create embeddings table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HashText returns the cache key for a text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetEmbedding returns the cached vector for (text, model), or found=false.
func (s *Store) GetEmbedding(text, model string) ([]float64, bool, error) {
	var encoded string
	err := s.db.QueryRow(
		`SELECT vector FROM embeddings WHERE text_hash = ? AND model = ?`,
		HashText(text), model,
	).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query embedding cache: %w", err)
	}

	var vector []float64
	if err := json.Unmarshal([]byte(encoded), &vector); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached embedding: %w", err)
	}
	return vector, true, nil
}

// PutEmbedding stores a vector for (text, model), replacing any prior entry.
func (s *Store) PutEmbedding(text, model string, vector []float64) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO embeddings (text_hash, model, dims, vector, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		HashText(text), model, len(vector), string(encoded), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Stats reports cache contents.
type Stats struct {
	Entries int
	Path    string
}

// GetStats returns row counts for the cache admin command.
func (s *Store) GetStats() (Stats, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM embeddings`).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return Stats{Entries: count, Path: s.path}, nil
}

// Clear removes every cached embedding.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("failed to clear embedding cache: %w", err)
	}
	return nil
}
