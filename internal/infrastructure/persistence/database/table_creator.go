package database

import (
	"database/sql"
	"fmt"
)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		role TEXT NOT NULL,
		is_approved INTEGER NOT NULL DEFAULT 0,
		subscribed_crops TEXT NOT NULL DEFAULT '[]',
		latitude REAL,
		longitude REAL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		crop_type TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT,
		creator_id TEXT NOT NULL,
		FOREIGN KEY (creator_id) REFERENCES users(id)
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_users_role_approved ON users(role, is_approved)`,
	`CREATE INDEX IF NOT EXISTS idx_users_position ON users(latitude, longitude)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_crop_type ON alerts(crop_type)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_creator ON alerts(creator_id)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_position ON alerts(latitude, longitude)`,
}

// TableCreator handles the creation of the database schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the database tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}
