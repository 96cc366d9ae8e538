package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func New(connStr string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Migrate creates the document table if it is missing. Every entity type
// shares one jsonb-backed table; queries always filter by user_id and type.
// Partial unique indexes hold the per-user natural keys: invoice number,
// opening balance period, expected income client+period.
func Migrate(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id    UUID NOT NULL,
			type       TEXT NOT NULL,
			data       JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_records_user_type ON records (user_id, type);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_records_invoice_number
			ON records (user_id, (data->>'invoiceNumber')) WHERE type = 'invoice';
		CREATE UNIQUE INDEX IF NOT EXISTS idx_records_opening_balance_period
			ON records (user_id, (data->>'periodType'), (data->>'period')) WHERE type = 'opening_balance';
		CREATE UNIQUE INDEX IF NOT EXISTS idx_records_expected_income_period
			ON records (user_id, (data->>'clientId'), (data->>'period')) WHERE type = 'expected_income';
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	return nil
}
