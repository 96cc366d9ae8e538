package syncer

import (
	"time"

	"github.com/moneo-app/moneo/internal/entity"
)

// Strategy selects how a detected conflict is settled.
type Strategy string

const (
	// StrategyLastWriteWins picks the copy with the newer document timestamp.
	// An exact tie goes to remote, which is the canonical side.
	StrategyLastWriteWins Strategy = "LAST_WRITE_WINS"
	StrategyServerWins    Strategy = "SERVER_WINS"
	StrategyClientWins    Strategy = "CLIENT_WINS"
	StrategyMerge         Strategy = "MERGE"
	// StrategyManual refuses to decide; both copies are handed back for a
	// human to choose.
	StrategyManual Strategy = "MANUAL"
)

// DefaultStrategy applies when a caller passes an empty strategy.
const DefaultStrategy = StrategyLastWriteWins

// Source names which side a resolution came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
	SourceMerge  Source = "merge"
	SourceNone   Source = "none"
)

// Resolution is the outcome of resolving one conflict. Resolved false with
// strategy MANUAL is a legitimate terminal state for the call, not an error.
type Resolution struct {
	Resolved bool           `json:"resolved"`
	Strategy Strategy       `json:"strategy"`
	Source   Source         `json:"source"`
	Reason   string         `json:"reason"`
	Data     *entity.Record `json:"data,omitempty"`
	Local    *entity.Record `json:"local,omitempty"`
	Remote   *entity.Record `json:"remote,omitempty"`
}

// Resolve settles a conflict between the local and remote copy of a record.
// It never fails: unknown strategies fall back to last-write-wins, missing
// timestamps fall back to createdAt and then to the epoch.
func Resolve(local, remote *entity.Record, strategy Strategy) Resolution {
	if strategy == "" {
		strategy = DefaultStrategy
	}

	switch strategy {
	case StrategyServerWins:
		return won(strategy, SourceRemote, "server copy selected unconditionally", remote, remote)

	case StrategyClientWins:
		return won(strategy, SourceLocal, "client copy selected unconditionally", local, remote)

	case StrategyMerge:
		return merge(local, remote)

	case StrategyManual:
		return Resolution{
			Resolved: false,
			Strategy: StrategyManual,
			Source:   SourceNone,
			Reason:   "manual resolution required",
			Local:    local,
			Remote:   remote,
		}

	case StrategyLastWriteWins:
	default:
		strategy = StrategyLastWriteWins
	}

	lt, rt := effectiveTime(local), effectiveTime(remote)

	if lt.After(rt) {
		return won(strategy, SourceLocal, "local copy has the newer timestamp", local, remote)
	}

	if rt.After(lt) {
		return won(strategy, SourceRemote, "remote copy has the newer timestamp", remote, remote)
	}

	return won(strategy, SourceRemote, "timestamps tie, remote is canonical", remote, remote)
}

// effectiveTime picks the comparison timestamp for last-write-wins:
// updatedAt, then createdAt, then the epoch.
func effectiveTime(rec *entity.Record) time.Time {
	if rec == nil {
		return time.Unix(0, 0)
	}

	if !rec.UpdatedAt.IsZero() {
		return rec.UpdatedAt
	}

	if !rec.CreatedAt.IsZero() {
		return rec.CreatedAt
	}

	return time.Unix(0, 0)
}

func won(strategy Strategy, source Source, reason string, winner, remote *entity.Record) Resolution {
	data := winner.Clone()

	// The canonical id always comes from the remote side.
	if remote != nil {
		data.ID = remote.ID
	}

	return Resolution{
		Resolved: true,
		Strategy: strategy,
		Source:   source,
		Reason:   reason,
		Data:     data,
	}
}

// merge starts from the remote copy and pulls in local fields that are
// present and non-null, but only when the local document as a whole is
// strictly newer. Field-level timestamps are not tracked; the document
// timestamp stands in for every field.
func merge(local, remote *entity.Record) Resolution {
	merged := remote.Clone()
	if merged.Data == nil {
		merged.Data = make(map[string]any)
	}

	localNewer := effectiveTime(local).After(effectiveTime(remote))

	copied := 0

	if localNewer && local != nil {
		for k, v := range local.Data {
			if v == nil {
				continue
			}

			if _, identity := identityFields[k]; identity {
				continue
			}

			merged.Data[k] = v
			copied++
		}
	}

	merged.UpdatedAt = time.Now().UTC()

	reason := "remote base kept, local document not newer"
	if copied > 0 {
		reason = "remote base with newer local fields applied"
	}

	return Resolution{
		Resolved: true,
		Strategy: StrategyMerge,
		Source:   SourceMerge,
		Reason:   reason,
		Data:     merged,
	}
}
