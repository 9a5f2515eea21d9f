package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pivotlp/internal/core"
)

// SQLiteStore keeps page records in a local database file. Expiry is checked
// on read since SQLite has no native TTL.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLiteStore opens (creating if needed) the database under dataDir. A
// zero ttl defaults to 30 days.
func NewSQLiteStore(dataDir string, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "pivotlp.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, ttl: ttl}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// initialize creates the pages table.
func (s *SQLiteStore) initialize() error {
	pagesTable := `
	CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);`

	if _, err := s.db.Exec(pagesTable); err != nil {
		return fmt.Errorf("failed to create pages table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, page core.LandingPage) (string, error) {
	id, err := newPageID()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(Record{Page: page, CreatedAt: now})
	if err != nil {
		return "", fmt.Errorf("failed to encode page record: %w", err)
	}

	query := `INSERT INTO pages (id, document, created_at, expires_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, keyPrefix+id, string(payload), now, now.Add(s.ttl)); err != nil {
		return "", fmt.Errorf("failed to save page: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Record, error) {
	query := `SELECT document, expires_at FROM pages WHERE id = ?`

	var document string
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, query, keyPrefix+id).Scan(&document, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	if time.Now().UTC().After(expiresAt) {
		// Expired rows read the same as absent ones. Cleanup is best-effort.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, keyPrefix+id)
		return nil, ErrNotFound
	}

	var record Record
	if err := json.Unmarshal([]byte(document), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &record, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
