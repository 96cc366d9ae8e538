package syncer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/lock"
	"github.com/moneo-app/moneo/internal/store"
	"github.com/moneo-app/moneo/internal/syncer"
)

func TestService_Reconcile(t *testing.T) {
	userID := uuid.New()
	recID := uuid.New()
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	type testCase struct {
		name      string
		local     *entity.Record
		strategy  syncer.Strategy
		setupMock func(m *store.MockEntityStore)
		check     func(t *testing.T, report *syncer.Report)
		wantErr   bool
	}

	remote := func(updatedAt time.Time, name string) *entity.Record {
		return &entity.Record{
			ID:        recID,
			UserID:    userID,
			Type:      entity.TypeClient,
			Data:      map[string]any{"name": name},
			CreatedAt: t1,
			UpdatedAt: updatedAt,
		}
	}

	tests := []testCase{
		{
			name:     "local winner is written back",
			local:    &entity.Record{ID: recID, Type: entity.TypeClient, Data: map[string]any{"name": "newer"}, UpdatedAt: t2},
			strategy: syncer.StrategyLastWriteWins,
			setupMock: func(m *store.MockEntityStore) {
				m.EXPECT().
					FindByUser(gomock.Any(), userID, entity.TypeClient).
					Return([]*entity.Record{remote(t1, "older")}, nil)
				m.EXPECT().
					Update(gomock.Any(), userID, entity.TypeClient, recID, gomock.Any()).
					Return(remote(t2, "newer"), nil)
			},
			check: func(t *testing.T, report *syncer.Report) {
				require.Len(t, report.Applied, 1)
				assert.Equal(t, syncer.SourceLocal, report.Applied[0].Source)
				assert.Equal(t, 1, report.Checked)
			},
		},
		{
			name:     "remote winner writes nothing",
			local:    &entity.Record{ID: recID, Type: entity.TypeClient, Data: map[string]any{"name": "older"}, UpdatedAt: t1},
			strategy: syncer.StrategyLastWriteWins,
			setupMock: func(m *store.MockEntityStore) {
				m.EXPECT().
					FindByUser(gomock.Any(), userID, entity.TypeClient).
					Return([]*entity.Record{remote(t2, "newer")}, nil)
			},
			check: func(t *testing.T, report *syncer.Report) {
				assert.Empty(t, report.Applied)
				assert.Equal(t, 1, report.Unchanged)
			},
		},
		{
			name:     "manual strategy queues the conflict",
			local:    &entity.Record{ID: recID, Type: entity.TypeClient, Data: map[string]any{"name": "a"}, UpdatedAt: t2},
			strategy: syncer.StrategyManual,
			setupMock: func(m *store.MockEntityStore) {
				m.EXPECT().
					FindByUser(gomock.Any(), userID, entity.TypeClient).
					Return([]*entity.Record{remote(t1, "b")}, nil)
			},
			check: func(t *testing.T, report *syncer.Report) {
				require.Len(t, report.Manual, 1)
				assert.Equal(t, recID, report.Manual[0].ID)
				assert.Equal(t, []string{"name"}, report.Manual[0].Diff.Changed)
				assert.Empty(t, report.Applied)
			},
		},
		{
			name:  "unmatched records are counted, not touched",
			local: &entity.Record{ID: uuid.New(), Type: entity.TypeClient, Data: map[string]any{"name": "only-local"}},
			setupMock: func(m *store.MockEntityStore) {
				m.EXPECT().
					FindByUser(gomock.Any(), userID, entity.TypeClient).
					Return([]*entity.Record{remote(t1, "only-remote")}, nil)
			},
			check: func(t *testing.T, report *syncer.Report) {
				assert.Equal(t, 1, report.LocalOnly)
				assert.Equal(t, 1, report.RemoteOnly)
				assert.Equal(t, 0, report.Checked)
			},
		},
		{
			name:  "store failure is systemic",
			local: &entity.Record{ID: recID, Type: entity.TypeClient, Data: map[string]any{"name": "x"}},
			setupMock: func(m *store.MockEntityStore) {
				m.EXPECT().
					FindByUser(gomock.Any(), userID, entity.TypeClient).
					Return(nil, errors.New("db down"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			st := store.NewMockEntityStore(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(st)
			}

			svc := syncer.NewService(st, lock.NewKeyed())

			collections := map[string][]*entity.Record{
				"clients": {tt.local},
			}

			report, err := svc.Reconcile(context.Background(), userID, collections, tt.strategy)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			tt.check(t, report)
		})
	}
}

func TestService_Preview_DoesNotWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	recID := uuid.New()

	st := store.NewMockEntityStore(ctrl)
	st.EXPECT().
		FindByUser(gomock.Any(), userID, entity.TypeClient).
		Return([]*entity.Record{{
			ID:        recID,
			UserID:    userID,
			Type:      entity.TypeClient,
			Data:      map[string]any{"name": "older"},
			UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}}, nil)
	// No Update expectation: a dry run must not write.

	svc := syncer.NewService(st, lock.NewKeyed())

	local := &entity.Record{
		ID:        recID,
		Type:      entity.TypeClient,
		Data:      map[string]any{"name": "newer"},
		UpdatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	report, err := svc.Preview(context.Background(), userID, map[string][]*entity.Record{"clients": {local}}, "")

	require.NoError(t, err)
	require.Len(t, report.Applied, 1)
}

func TestService_ResolveManual(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	recID := uuid.New()

	st := store.NewMockEntityStore(ctrl)
	st.EXPECT().
		Update(gomock.Any(), userID, entity.TypeClient, recID, map[string]any{"name": "local"}).
		Return(&entity.Record{ID: recID, Data: map[string]any{"name": "local"}}, nil)

	svc := syncer.NewService(st, lock.NewKeyed())

	local := &entity.Record{ID: recID, Type: entity.TypeClient, Data: map[string]any{"name": "local"}}

	rec, err := svc.ResolveManual(context.Background(), userID, entity.TypeClient, recID, syncer.SourceLocal, local)

	require.NoError(t, err)
	assert.Equal(t, "local", entity.String(rec.Data, "name"))

	_, err = svc.ResolveManual(context.Background(), userID, entity.TypeClient, recID, syncer.Source("bogus"), local)
	assert.Error(t, err)
}
