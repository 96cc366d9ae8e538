package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionRoundTrip(t *testing.T) {
	for _, typ := range All {
		got, ok := TypeForCollection(typ.Collection())
		require.True(t, ok, "collection %q", typ.Collection())
		assert.Equal(t, typ, got)
	}

	_, ok := TypeForCollection("widgets")
	assert.False(t, ok)
}

func TestDecimal(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
		ok   bool
	}{
		{name: "float64", data: map[string]any{"amount": 12.5}, want: "12.5", ok: true},
		{name: "json number", data: map[string]any{"amount": json.Number("1200.55")}, want: "1200.55", ok: true},
		{name: "string", data: map[string]any{"amount": "99.90"}, want: "99.9", ok: true},
		{name: "empty string", data: map[string]any{"amount": ""}, ok: false},
		{name: "garbage string", data: map[string]any{"amount": "lots"}, ok: false},
		{name: "absent", data: map[string]any{}, ok: false},
		{name: "null", data: map[string]any{"amount": nil}, ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Decimal(tc.data, "amount")
			require.Equal(t, tc.ok, ok)

			if tc.ok {
				want, err := decimal.NewFromString(tc.want)
				require.NoError(t, err)
				assert.True(t, want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestTime(t *testing.T) {
	got, ok := Time(map[string]any{"d": "2024-06-15T10:30:00Z"}, "d")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC), got)

	got, ok = Time(map[string]any{"d": "2024-06-15"}, "d")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC), got)

	_, ok = Time(map[string]any{"d": "June 15th"}, "d")
	assert.False(t, ok)

	_, ok = Time(map[string]any{}, "d")
	assert.False(t, ok)
}

func TestRecordClone(t *testing.T) {
	rec := &Record{
		Type: TypeClient,
		Data: map[string]any{
			"name": "Acme",
			"tags": []any{"vip"},
			"contact": map[string]any{
				"email": "acme@example.com",
			},
		},
	}

	clone := rec.Clone()

	clone.Data["name"] = "changed"
	clone.Data["contact"].(map[string]any)["email"] = "other@example.com"
	clone.Data["tags"].([]any)[0] = "normal"

	assert.Equal(t, "Acme", rec.Data["name"])
	assert.Equal(t, "acme@example.com", rec.Data["contact"].(map[string]any)["email"])
	assert.Equal(t, "vip", rec.Data["tags"].([]any)[0])
}
