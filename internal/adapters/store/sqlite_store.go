package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS decisions (
			message_id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			tier TEXT NOT NULL,
			verified BOOLEAN NOT NULL,
			language TEXT NOT NULL,
			gates TEXT NOT NULL,
			decision TEXT NOT NULL,
			reason TEXT NOT NULL,
			protected_market TEXT NOT NULL,
			protected_category TEXT NOT NULL,
			evaluated_at INTEGER NOT NULL,
			ground_truth TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_evaluated_at ON decisions(evaluated_at)`,
	},
	upsert: `
		INSERT INTO decisions (` + insertColumns + `)
		VALUES (` + insertValues + `)
		ON CONFLICT(message_id) DO UPDATE SET ` + conflictUpdates,
}

// NewSQLiteStore opens or creates a SQLite decision store
func NewSQLiteStore(dbPath string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	return newSQLStore(db, sqliteDialect, logger, retention, cleanupFreq)
}
