package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// DBFileName is the database file created inside the vector store directory.
const DBFileName = "index.db"

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		embedding_model TEXT NOT NULL,
		dimensions INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		collection TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_entries_collection ON entries(collection, seq);
	`
	_, err := db.Exec(schema)
	return err
}

// EnsureCollection returns the named collection, creating it for model when missing.
func (s *SQLiteStorage) EnsureCollection(ctx context.Context, name, model string) (*Collection, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (name, embedding_model) VALUES (?, ?)`,
		name, model,
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	col, err := s.getCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if col.EmbeddingModel != model {
		return nil, fmt.Errorf("%w: collection %q was built with embedding model %q, not %q",
			models.ErrIndex, name, col.EmbeddingModel, model)
	}
	return col, nil
}

func (s *SQLiteStorage) getCollection(ctx context.Context, name string) (*Collection, error) {
	var col Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT name, embedding_model, dimensions FROM collections WHERE name = ?`, name,
	).Scan(&col.Name, &col.EmbeddingModel, &col.Dimensions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection not found: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return &col, nil
}

// SetDimensions records the vector length of a collection.
func (s *SQLiteStorage) SetDimensions(ctx context.Context, name string, dimensions int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE collections SET dimensions = ? WHERE name = ?`, dimensions, name)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("collection not found: %s", name)
	}
	return nil
}

// InsertEntries stores entries in a single transaction.
func (s *SQLiteStorage) InsertEntries(ctx context.Context, collection string, entries []models.IndexedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (id, collection, content, metadata, embedding)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		metadataJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, collection, e.Content, string(metadataJSON), EncodeVector(e.Embedding)); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// ListEntries returns every entry of the collection in insertion order.
func (s *SQLiteStorage) ListEntries(ctx context.Context, collection string) ([]models.IndexedEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, embedding FROM entries WHERE collection = ? ORDER BY seq`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.IndexedEntry
	for rows.Next() {
		var (
			e            models.IndexedEntry
			metadataJSON sql.NullString
			blob         []byte
		)
		if err := rows.Scan(&e.ID, &e.Content, &metadataJSON, &blob); err != nil {
			return nil, err
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata of %s: %w", e.ID, err)
			}
		}
		if e.Embedding, err = DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountEntries returns the number of entries in the collection.
func (s *SQLiteStorage) CountEntries(ctx context.Context, collection string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// DeleteEntries removes all entries of the collection and resets its dimensions.
func (s *SQLiteStorage) DeleteEntries(ctx context.Context, collection string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE collection = ?`, collection); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimensions = 0 WHERE name = ?`, collection); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
