package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS decisions (
			message_id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			tier TEXT NOT NULL,
			verified BOOLEAN NOT NULL,
			language TEXT NOT NULL,
			gates TEXT NOT NULL,
			decision TEXT NOT NULL,
			reason TEXT NOT NULL,
			protected_market TEXT NOT NULL,
			protected_category TEXT NOT NULL,
			evaluated_at BIGINT NOT NULL,
			ground_truth TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_evaluated_at ON decisions(evaluated_at)`,
	},
	upsert: `
		INSERT INTO decisions (` + insertColumns + `)
		VALUES (` + insertValues + `)
		ON CONFLICT (message_id) DO UPDATE SET ` + conflictUpdates,
}

// NewPostgresStore connects to PostgreSQL and creates the decision table if needed
func NewPostgresStore(dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}
	return newSQLStore(db, postgresDialect, logger, retention, cleanupFreq)
}
