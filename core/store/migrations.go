package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"coldwatch/core/utils"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		salt TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'visiteur',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		username TEXT NOT NULL,
		role TEXT NOT NULL,
		csrf_token TEXT NOT NULL,
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT,
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		temp REAL NOT NULL,
		hum REAL NOT NULL,
		dt TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_readings_dt ON readings(dt);`,
	`CREATE TABLE IF NOT EXISTS temperature_thresholds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		min_temp REAL NOT NULL DEFAULT 2.0,
		max_temp REAL NOT NULL DEFAULT 8.0,
		updated_at TIMESTAMP NOT NULL,
		updated_by INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS incidents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		counter INTEGER NOT NULL DEFAULT 0,
		last_increment_at TIMESTAMP,
		active INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'en_cours',
		temperature REAL,
		humidity REAL,
		acknowledged INTEGER NOT NULL DEFAULT 0,
		ack_operator TEXT,
		ack_at TIMESTAMP,
		op1_name TEXT NOT NULL DEFAULT 'Operation corrective 1',
		op1_checked INTEGER NOT NULL DEFAULT 0,
		op1_comment TEXT NOT NULL DEFAULT '',
		op1_operator TEXT,
		op1_updated_at TIMESTAMP,
		op2_name TEXT NOT NULL DEFAULT 'Operation corrective 2',
		op2_checked INTEGER NOT NULL DEFAULT 0,
		op2_comment TEXT NOT NULL DEFAULT '',
		op2_operator TEXT,
		op2_updated_at TIMESTAMP,
		op3_name TEXT NOT NULL DEFAULT 'Operation corrective 3',
		op3_checked INTEGER NOT NULL DEFAULT 0,
		op3_comment TEXT NOT NULL DEFAULT '',
		op3_operator TEXT,
		op3_updated_at TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_active ON incidents(active);`,
	`CREATE TABLE IF NOT EXISTS incident_comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		incident_id INTEGER NOT NULL,
		author TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(incident_id) REFERENCES incidents(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS incident_archive (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		incident_id INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP NOT NULL,
		counter INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'termine',
		temperature REAL,
		humidity REAL,
		acknowledged INTEGER NOT NULL DEFAULT 0,
		ack_operator TEXT,
		ack_at TIMESTAMP,
		op1_name TEXT NOT NULL DEFAULT '',
		op1_checked INTEGER NOT NULL DEFAULT 0,
		op1_comment TEXT NOT NULL DEFAULT '',
		op1_operator TEXT,
		op1_updated_at TIMESTAMP,
		op2_name TEXT NOT NULL DEFAULT '',
		op2_checked INTEGER NOT NULL DEFAULT 0,
		op2_comment TEXT NOT NULL DEFAULT '',
		op2_operator TEXT,
		op2_updated_at TIMESTAMP,
		op3_name TEXT NOT NULL DEFAULT '',
		op3_checked INTEGER NOT NULL DEFAULT 0,
		op3_comment TEXT NOT NULL DEFAULT '',
		op3_operator TEXT,
		op3_updated_at TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_incident_archive_started ON incident_archive(started_at);`,
}

func ApplyMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	if db.driver == "postgres" {
		return applyGooseMigrations(ctx, db, logger)
	}
	if logger != nil {
		logger.Printf("applying sqlite migrations")
	}
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migration #%d failed: %w", i+1, err)
		}
	}
	return nil
}

func applyGooseMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	if logger != nil {
		logger.Printf("applying postgres migrations")
	}
	goose.SetBaseFS(embeddedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db.DB, "migrations")
}
