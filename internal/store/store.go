package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/moneo-app/moneo/internal/entity"
)

// ErrNotFound is returned when a record does not exist for the given user.
var ErrNotFound = errors.New("record not found")

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// EntityStore is the per-type document repository the sync and migration
// subsystems are written against. Every method is scoped by user id; an
// implementation must never return or touch another user's records.
type EntityStore interface {
	FindByUser(ctx context.Context, userID uuid.UUID, typ entity.Type) ([]*entity.Record, error)
	FindOne(ctx context.Context, userID uuid.UUID, typ entity.Type, id uuid.UUID) (*entity.Record, error)

	// Create persists the record and assigns ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, rec *entity.Record) error

	// Update merges patch into the stored document body and bumps UpdatedAt.
	// A nil value in the patch clears the field.
	Update(ctx context.Context, userID uuid.UUID, typ entity.Type, id uuid.UUID, patch map[string]any) (*entity.Record, error)

	Delete(ctx context.Context, userID uuid.UUID, typ entity.Type, id uuid.UUID) error

	// DeleteAllByUser removes every record of the type owned by the user and
	// returns how many were removed. Deleting from an empty set is a no-op.
	DeleteAllByUser(ctx context.Context, userID uuid.UUID, typ entity.Type) (int, error)
}
