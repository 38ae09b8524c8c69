package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"scanstation/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB owns the station-local SQLite database holding the outbox.
type DB struct {
	db         *sql.DB
	maxRetries int
	logger     *zerolog.Logger
}

// NewDB opens the outbox database at path. maxRetries is the delivery ceiling
// stamped into new records; values <= 0 fall back to the default.
func NewDB(path string, maxRetries int, logger *zerolog.Logger) (*DB, error) {
	if maxRetries <= 0 {
		maxRetries = models.MaxRetries
	}
	// Создаем директорию для БД, если её нет
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	logger.Info().Str("path", path).Msg("outbox database initialized")
	return &DB{db: db, maxRetries: maxRetries, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Очередь отложенных регистраций
		`CREATE TABLE IF NOT EXISTS outbox (
            id TEXT PRIMARY KEY,
            barcode TEXT NOT NULL,
            enqueued_at DATETIME NOT NULL,
            retry_count INTEGER NOT NULL DEFAULT 0,
            max_retries INTEGER NOT NULL DEFAULT 5
        )`,

		`CREATE INDEX IF NOT EXISTS idx_outbox_enqueued_at ON outbox(enqueued_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %v", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}
