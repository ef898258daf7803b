package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"visitauto/config"
)

func Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %v", err)
	}

	return db, nil
}

// EnsureSchema creates the batch persistence tables when they are missing.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS batch_runs (
			id SERIAL PRIMARY KEY,
			site VARCHAR(100) NOT NULL,
			total_records INTEGER NOT NULL,
			success_count INTEGER NOT NULL,
			failed_count INTEGER NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS batch_records (
			id SERIAL PRIMARY KEY,
			run_id INTEGER NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
			record_index INTEGER NOT NULL,
			success BOOLEAN NOT NULL,
			failure_reason VARCHAR(50),
			error_detail TEXT,
			field_stats JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batch_records_run_id ON batch_records(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("error creating schema: %v", err)
		}
	}
	return nil
}
