package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/lock"
	"github.com/moneo-app/moneo/internal/store"
)

// Service reconciles a device's local snapshot of a user's dataset against
// the canonical copy in the store.
type Service struct {
	store store.EntityStore
	users *lock.Keyed
}

func NewService(st store.EntityStore, users *lock.Keyed) *Service {
	return &Service{store: st, users: users}
}

// Change records one applied resolution.
type Change struct {
	Type   entity.Type `json:"type"`
	ID     uuid.UUID   `json:"id"`
	Source Source      `json:"source"`
	Reason string      `json:"reason"`
	Diff   Diff        `json:"diff"`
}

// ManualConflict is a conflict the chosen strategy refused to settle. Both
// copies ride along so a client can present them side by side.
type ManualConflict struct {
	Type   entity.Type    `json:"type"`
	ID     uuid.UUID      `json:"id"`
	Diff   Diff           `json:"diff"`
	Local  *entity.Record `json:"local"`
	Remote *entity.Record `json:"remote"`
}

// Report summarizes one reconcile pass.
type Report struct {
	Checked    int              `json:"checked"`
	Unchanged  int              `json:"unchanged"`
	Applied    []Change         `json:"applied"`
	Manual     []ManualConflict `json:"manual"`
	LocalOnly  int              `json:"localOnly"`
	RemoteOnly int              `json:"remoteOnly"`
}

// Reconcile compares every snapshot record that has a canonical id against
// the store, resolves conflicts with the given strategy, and writes back the
// winners that did not come from the remote side. Records present on only one
// side are counted, not touched: creates and deletes are not sync's call.
//
// The pass runs under the per-user lock so it cannot interleave with a bulk
// migration for the same user.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID, collections map[string][]*entity.Record, strategy Strategy) (*Report, error) {
	unlock := s.users.Lock("user:" + userID.String())
	defer unlock()

	return s.reconcile(ctx, userID, collections, strategy, false)
}

// Preview runs the same comparison without writing anything. Used by review
// clients to list pending conflicts.
func (s *Service) Preview(ctx context.Context, userID uuid.UUID, collections map[string][]*entity.Record, strategy Strategy) (*Report, error) {
	return s.reconcile(ctx, userID, collections, strategy, true)
}

func (s *Service) reconcile(ctx context.Context, userID uuid.UUID, collections map[string][]*entity.Record, strategy Strategy, dryRun bool) (*Report, error) {
	report := &Report{}

	for name, locals := range collections {
		typ, ok := entity.TypeForCollection(name)
		if !ok {
			slog.Warn("skipping unknown collection in snapshot", "collection", name)
			continue
		}

		remotes, err := s.store.FindByUser(ctx, userID, typ)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}

		byID := make(map[uuid.UUID]*entity.Record, len(remotes))
		for _, r := range remotes {
			byID[r.ID] = r
		}

		matched := make(map[uuid.UUID]struct{}, len(locals))

		for _, local := range locals {
			if local.ID == uuid.Nil {
				report.LocalOnly++
				continue
			}

			remote, ok := byID[local.ID]
			if !ok {
				report.LocalOnly++
				continue
			}

			matched[local.ID] = struct{}{}
			report.Checked++

			conflict, diff := Detect(local, remote)
			if !conflict {
				report.Unchanged++
				continue
			}

			res := Resolve(local, remote, strategy)
			if !res.Resolved {
				report.Manual = append(report.Manual, ManualConflict{
					Type:   typ,
					ID:     remote.ID,
					Diff:   diff,
					Local:  local,
					Remote: remote,
				})

				continue
			}

			if res.Source != SourceRemote && !dryRun {
				if _, err := s.store.Update(ctx, userID, typ, remote.ID, res.Data.Data); err != nil {
					return nil, fmt.Errorf("applying resolution for %s %s: %w", typ, remote.ID, err)
				}
			}

			if res.Source == SourceRemote {
				report.Unchanged++
				continue
			}

			report.Applied = append(report.Applied, Change{
				Type:   typ,
				ID:     remote.ID,
				Source: res.Source,
				Reason: res.Reason,
				Diff:   diff,
			})
		}

		for _, r := range remotes {
			if _, ok := matched[r.ID]; !ok {
				report.RemoteOnly++
			}
		}
	}

	return report, nil
}

// ResolveManual settles a previously reported manual conflict with an
// explicit choice. Choosing the remote side is a no-op beyond confirming the
// record still exists.
func (s *Service) ResolveManual(ctx context.Context, userID uuid.UUID, typ entity.Type, id uuid.UUID, choice Source, local *entity.Record) (*entity.Record, error) {
	unlock := s.users.Lock("user:" + userID.String())
	defer unlock()

	switch choice {
	case SourceRemote:
		return s.store.FindOne(ctx, userID, typ, id)

	case SourceLocal:
		if local == nil {
			return nil, fmt.Errorf("resolving %s %s: local copy required", typ, id)
		}

		rec, err := s.store.Update(ctx, userID, typ, id, stripIdentity(local.Data))
		if err != nil {
			return nil, fmt.Errorf("resolving %s %s: %w", typ, id, err)
		}

		return rec, nil

	default:
		return nil, fmt.Errorf("resolving %s %s: unknown choice %q", typ, id, choice)
	}
}
