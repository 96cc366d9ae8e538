package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/store"
)

// Store persists entity documents in a single jsonb-backed table. Every query
// carries the user_id filter; tenant isolation lives here, not in callers.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Expected column order: id, user_id, type, data, created_at, updated_at
func scanRecord(s scanner) (*entity.Record, error) {
	var rec entity.Record

	var typeStr string

	var data []byte

	if err := s.Scan(&rec.ID, &rec.UserID, &typeStr, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	rec.Type = entity.Type(typeStr)

	if err := json.Unmarshal(data, &rec.Data); err != nil {
		return nil, fmt.Errorf("decoding record body: %w", err)
	}

	return &rec, nil
}

const selectColumns = `id, user_id, type, data, created_at, updated_at`

func (s *Store) FindByUser(ctx context.Context, userID uuid.UUID, typ entity.Type) ([]*entity.Record, error) {
	query := `SELECT ` + selectColumns + `
		FROM records
		WHERE user_id = $1 AND type = $2
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, typ)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var recs []*entity.Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	return recs, nil
}

func (s *Store) FindOne(ctx context.Context, userID uuid.UUID, typ entity.Type, id uuid.UUID) (*entity.Record, error) {
	query := `SELECT ` + selectColumns + `
		FROM records
		WHERE user_id = $1 AND type = $2 AND id = $3`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, userID, typ, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}

		return nil, fmt.Errorf("getting record: %w", err)
	}

	return rec, nil
}

func (s *Store) Create(ctx context.Context, rec *entity.Record) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("encoding record body: %w", err)
	}

	query := `
		INSERT INTO records (user_id, type, data, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query, rec.UserID, rec.Type, data).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating record: %w", err)
	}

	return nil
}

func (s *Store) Update(ctx context.Context, userID uuid.UUID, typ entity.Type, id uuid.UUID, patch map[string]any) (*entity.Record, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encoding patch: %w", err)
	}

	// jsonb || merges top-level keys; explicit nulls in the patch are kept so
	// callers can clear fields.
	query := `
		UPDATE records
		SET data = data || $4::jsonb, updated_at = NOW()
		WHERE user_id = $1 AND type = $2 AND id = $3
		RETURNING ` + selectColumns

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, userID, typ, id, data))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}

		return nil, fmt.Errorf("updating record: %w", err)
	}

	return rec, nil
}

func (s *Store) Delete(ctx context.Context, userID uuid.UUID, typ entity.Type, id uuid.UUID) error {
	query := `DELETE FROM records WHERE user_id = $1 AND type = $2 AND id = $3`

	res, err := s.db.ExecContext(ctx, query, userID, typ, id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteAllByUser(ctx context.Context, userID uuid.UUID, typ entity.Type) (int, error) {
	query := `DELETE FROM records WHERE user_id = $1 AND type = $2`

	res, err := s.db.ExecContext(ctx, query, userID, typ)
	if err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted records: %w", err)
	}

	return int(n), nil
}
