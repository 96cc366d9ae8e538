package syncer

import (
	"reflect"
	"sort"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/moneo-app/moneo/internal/entity"
)

// identityFields are stripped before fingerprinting: two copies of the same
// record must not conflict just because they were persisted at different
// times or carry a transient id alias.
var identityFields = map[string]struct{}{
	"id":        {},
	"_id":       {},
	"userId":    {},
	"createdAt": {},
	"updatedAt": {},
}

// Fingerprint hashes the record's content. Map hashing is independent of key
// order, so two serializations of the same document always agree.
func Fingerprint(rec *entity.Record) (uint64, error) {
	return hashstructure.Hash(stripIdentity(rec.Data), hashstructure.FormatV2, nil)
}

func stripIdentity(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))

	for k, v := range data {
		if _, skip := identityFields[k]; skip {
			continue
		}

		out[k] = v
	}

	return out
}

// Diff describes, field by field, how two copies of a record disagree. It is
// audit metadata; conflict detection itself goes by fingerprint.
type Diff struct {
	LocalOnly  []string `json:"localOnly,omitempty"`
	RemoteOnly []string `json:"remoteOnly,omitempty"`
	Changed    []string `json:"changed,omitempty"`
}

func (d Diff) Empty() bool {
	return len(d.LocalOnly) == 0 && len(d.RemoteOnly) == 0 && len(d.Changed) == 0
}

// Detect reports whether local and remote copies of the same canonical record
// actually disagree, along with the field-level diff.
func Detect(local, remote *entity.Record) (bool, Diff) {
	diff := diffData(stripIdentity(local.Data), stripIdentity(remote.Data))

	lh, lerr := Fingerprint(local)
	rh, rerr := Fingerprint(remote)

	if lerr != nil || rerr != nil {
		// Unhashable values are vanishingly rare for JSON-shaped data; fall
		// back to the field comparison rather than failing the sync.
		return !diff.Empty(), diff
	}

	return lh != rh, diff
}

func diffData(local, remote map[string]any) Diff {
	var d Diff

	for k, lv := range local {
		rv, ok := remote[k]
		if !ok {
			d.LocalOnly = append(d.LocalOnly, k)
			continue
		}

		if !reflect.DeepEqual(lv, rv) {
			d.Changed = append(d.Changed, k)
		}
	}

	for k := range remote {
		if _, ok := local[k]; !ok {
			d.RemoteOnly = append(d.RemoteOnly, k)
		}
	}

	sort.Strings(d.LocalOnly)
	sort.Strings(d.RemoteOnly)
	sort.Strings(d.Changed)

	return d
}
