package migration

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"github.com/moneo-app/moneo/internal/entity"
)

// remapTable maps payload-local transient ids to the canonical ids assigned
// by the store, per entity type. Foreign keys inside the payload reference
// transient ids; everything persisted references canonical ids.
type remapTable struct {
	byType map[entity.Type]map[string]uuid.UUID
}

func newRemap() *remapTable {
	return &remapTable{byType: make(map[entity.Type]map[string]uuid.UUID)}
}

func (r *remapTable) add(typ entity.Type, payloadID string, canonical uuid.UUID) {
	m, ok := r.byType[typ]
	if !ok {
		m = make(map[string]uuid.UUID)
		r.byType[typ] = m
	}

	m[payloadID] = canonical
}

func (r *remapTable) resolve(typ entity.Type, payloadID string) (uuid.UUID, bool) {
	id, ok := r.byType[typ][payloadID]
	return id, ok
}

// refString renders a payload reference value as a lookup key. Exports
// produced by different clients carry ids as strings or numbers.
func refString(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case int:
		return strconv.Itoa(vv)
	case int64:
		return strconv.FormatInt(vv, 10)
	case json.Number:
		return vv.String()
	default:
		return ""
	}
}

// transientID reads a record's payload-local id, if it has one.
func transientID(row map[string]any) string {
	return refString(row["id"])
}
