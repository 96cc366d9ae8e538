package syncer_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/syncer"
)

func rec(data map[string]any) *entity.Record {
	return &entity.Record{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Type:   entity.TypeClient,
		Data:   data,
	}
}

func TestFingerprint_IgnoresKeyOrder(t *testing.T) {
	// Two documents built in different insertion orders must hash the same.
	a := map[string]any{}
	a["name"] = "Acme"
	a["email"] = "acme@example.com"
	a["phone"] = "123"

	b := map[string]any{}
	b["phone"] = "123"
	b["email"] = "acme@example.com"
	b["name"] = "Acme"

	ha, err := syncer.Fingerprint(rec(a))
	require.NoError(t, err)

	hb, err := syncer.Fingerprint(rec(b))
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
}

func TestFingerprint_StripsIdentityFields(t *testing.T) {
	base := map[string]any{"name": "Acme"}
	noisy := map[string]any{
		"name":      "Acme",
		"id":        "42",
		"_id":       "abc",
		"userId":    "u1",
		"createdAt": "2024-01-01T00:00:00Z",
		"updatedAt": "2024-06-01T00:00:00Z",
	}

	hBase, err := syncer.Fingerprint(rec(base))
	require.NoError(t, err)

	hNoisy, err := syncer.Fingerprint(rec(noisy))
	require.NoError(t, err)

	assert.Equal(t, hBase, hNoisy)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name         string
		local        map[string]any
		remote       map[string]any
		wantConflict bool
		wantDiff     syncer.Diff
	}{
		{
			name:         "identical content",
			local:        map[string]any{"name": "Acme", "notes": "vip"},
			remote:       map[string]any{"notes": "vip", "name": "Acme"},
			wantConflict: false,
			wantDiff:     syncer.Diff{},
		},
		{
			name:         "changed field",
			local:        map[string]any{"name": "Acme Corp"},
			remote:       map[string]any{"name": "Acme"},
			wantConflict: true,
			wantDiff:     syncer.Diff{Changed: []string{"name"}},
		},
		{
			name:         "field only on one side",
			local:        map[string]any{"name": "Acme", "phone": "123"},
			remote:       map[string]any{"name": "Acme", "email": "a@b.c"},
			wantConflict: true,
			wantDiff:     syncer.Diff{LocalOnly: []string{"phone"}, RemoteOnly: []string{"email"}},
		},
		{
			name:         "only identity fields differ",
			local:        map[string]any{"name": "Acme", "updatedAt": "2024-01-01"},
			remote:       map[string]any{"name": "Acme", "updatedAt": "2024-06-01"},
			wantConflict: false,
			wantDiff:     syncer.Diff{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflict, diff := syncer.Detect(rec(tt.local), rec(tt.remote))

			assert.Equal(t, tt.wantConflict, conflict)
			assert.Equal(t, tt.wantDiff, diff)
		})
	}
}
