package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/store"
)

// Store is an in-memory EntityStore with the same semantics as the Postgres
// implementation. It backs importer and sync tests and the offline review
// client; it is not meant for production use.
type Store struct {
	mu   sync.RWMutex
	recs map[key]*entity.Record

	// FailCreate, when set, is consulted before every Create so tests can
	// inject per-record failures.
	FailCreate func(rec *entity.Record) error

	now func() time.Time
}

type key struct {
	userID uuid.UUID
	typ    entity.Type
	id     uuid.UUID
}

func New() *Store {
	return &Store{
		recs: make(map[key]*entity.Record),
		now:  time.Now,
	}
}

func (s *Store) FindByUser(_ context.Context, userID uuid.UUID, typ entity.Type) ([]*entity.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Record

	for k, rec := range s.recs {
		if k.userID == userID && k.typ == typ {
			out = append(out, rec.Clone())
		}
	}

	return out, nil
}

func (s *Store) FindOne(_ context.Context, userID uuid.UUID, typ entity.Type, id uuid.UUID) (*entity.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recs[key{userID, typ, id}]
	if !ok {
		return nil, store.ErrNotFound
	}

	return rec.Clone(), nil
}

func (s *Store) Create(_ context.Context, rec *entity.Record) error {
	if s.FailCreate != nil {
		if err := s.FailCreate(rec); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	rec.ID = uuid.New()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.recs[key{rec.UserID, rec.Type, rec.ID}] = rec.Clone()

	return nil
}

func (s *Store) Update(_ context.Context, userID uuid.UUID, typ entity.Type, id uuid.UUID, patch map[string]any) (*entity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[key{userID, typ, id}]
	if !ok {
		return nil, store.ErrNotFound
	}

	if rec.Data == nil {
		rec.Data = make(map[string]any, len(patch))
	}

	for k, v := range patch {
		rec.Data[k] = v
	}

	rec.UpdatedAt = s.now().UTC()

	return rec.Clone(), nil
}

func (s *Store) Delete(_ context.Context, userID uuid.UUID, typ entity.Type, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{userID, typ, id}
	if _, ok := s.recs[k]; !ok {
		return store.ErrNotFound
	}

	delete(s.recs, k)

	return nil
}

func (s *Store) DeleteAllByUser(_ context.Context, userID uuid.UUID, typ entity.Type) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0

	for k := range s.recs {
		if k.userID == userID && k.typ == typ {
			delete(s.recs, k)
			deleted++
		}
	}

	return deleted, nil
}
