package store

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS decisions (
			message_id VARCHAR(255) PRIMARY KEY,
			sender VARCHAR(512) NOT NULL,
			label VARCHAR(32) NOT NULL,
			confidence DOUBLE NOT NULL,
			tier VARCHAR(16) NOT NULL,
			verified BOOLEAN NOT NULL,
			language VARCHAR(16) NOT NULL,
			gates TEXT NOT NULL,
			decision VARCHAR(16) NOT NULL,
			reason TEXT NOT NULL,
			protected_market VARCHAR(16) NOT NULL,
			protected_category VARCHAR(32) NOT NULL,
			evaluated_at BIGINT NOT NULL,
			ground_truth VARCHAR(32) NULL,
			INDEX idx_decisions_decision (decision),
			INDEX idx_decisions_evaluated_at (evaluated_at)
		)`,
	},
	upsert: `
		INSERT INTO decisions (` + insertColumns + `)
		VALUES (` + insertValues + `)
		ON DUPLICATE KEY UPDATE ` + duplicateUpdates,
}

// NewMySQLStore connects to MySQL and creates the decision table if needed
func NewMySQLStore(dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLStore, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}
	return newSQLStore(db, mysqlDialect, logger, retention, cleanupFreq)
}
