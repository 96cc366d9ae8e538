package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// String reads a string field from a document body. Returns "" when the field
// is absent, null, or not a string.
func String(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}

	return ""
}

// Has reports whether the field is present and non-null.
func Has(data map[string]any, key string) bool {
	v, ok := data[key]
	return ok && v != nil
}

// Time parses an ISO-8601 field. Both full timestamps and bare dates are
// accepted since exports mix the two.
func Time(data map[string]any, key string) (time.Time, bool) {
	s, ok := data[key].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// Decimal reads a numeric field. JSON decoding may surface numbers as float64,
// json.Number, or strings depending on the producer.
func Decimal(data map[string]any, key string) (decimal.Decimal, bool) {
	switch v := data[key].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false
		}

		return d, true
	case string:
		if v == "" {
			return decimal.Zero, false
		}

		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}

		return d, true
	default:
		return decimal.Zero, false
	}
}
