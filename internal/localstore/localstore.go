// Package localstore keeps a device-side snapshot of a user's full entity
// graph. Writes are debounced so a burst of mutations produces one file
// write, and the write always serializes the state as of the moment it fires.
package localstore

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/moneo-app/moneo/internal/entity"
)

// DefaultDelay is the autosave debounce window.
const DefaultDelay = time.Second

// Snapshot is the whole on-device entity graph, keyed by pluralized
// collection names.
type Snapshot struct {
	SavedAt     time.Time                   `json:"savedAt"`
	Collections map[string][]*entity.Record `json:"collections"`
}

// Medium is the single read/write contract the layer is written against. The
// same logic works whether the backing medium is a local filesystem, a
// sandboxed mobile filesystem, or a browser-persisted blob.
type Medium interface {
	ReadSnapshot() ([]byte, error)
	WriteSnapshot(data []byte) error
	WriteBackup(name string, data []byte) error
}

// Layer owns the snapshot lifecycle: debounced autosave, manual backups,
// load-on-start. The state source is re-invoked at write time, never
// captured at schedule time.
type Layer struct {
	medium Medium
	state  func() *Snapshot
	delay  time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func New(medium Medium, state func() *Snapshot) *Layer {
	return &Layer{
		medium: medium,
		state:  state,
		delay:  DefaultDelay,
	}
}

// WithDelay overrides the debounce window; mainly for tests.
func (l *Layer) WithDelay(d time.Duration) *Layer {
	l.delay = d
	return l
}

// Touch schedules an autosave. Every call resets the single pending timer, so
// only the last write in a burst executes.
func (l *Layer) Touch() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.timer != nil {
		l.timer.Stop()
	}

	l.timer = time.AfterFunc(l.delay, l.fire)
}

func (l *Layer) fire() {
	l.mu.Lock()
	l.timer = nil
	l.mu.Unlock()

	l.write()
}

// Flush cancels any pending autosave and writes immediately.
func (l *Layer) Flush() {
	l.mu.Lock()

	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}

	l.mu.Unlock()

	l.write()
}

// Close flushes a pending write, if any. Call on shutdown.
func (l *Layer) Close() {
	l.mu.Lock()
	pending := l.timer != nil

	if pending {
		l.timer.Stop()
		l.timer = nil
	}

	l.mu.Unlock()

	if pending {
		l.write()
	}
}

func (l *Layer) write() {
	snap := l.state()
	if snap == nil {
		return
	}

	snap.SavedAt = time.Now().UTC()

	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("failed to serialize snapshot", "error", err)
		return
	}

	if err := l.medium.WriteSnapshot(data); err != nil {
		slog.Error("failed to write snapshot", "error", err)
	}
}

// Backup writes an immediate, timestamped copy of the current state to the
// backup location, independent of autosave. Returns the backup name.
func (l *Layer) Backup() (string, error) {
	snap := l.state()
	if snap == nil {
		return "", nil
	}

	snap.SavedAt = time.Now().UTC()

	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}

	name := "backup-" + time.Now().Format("20060102-150405") + ".json"
	if err := l.medium.WriteBackup(name, data); err != nil {
		return "", err
	}

	return name, nil
}

// Load returns the last saved snapshot, or nil when none exists. Read and
// decode failures are non-fatal and treated as no snapshot.
func (l *Layer) Load() *Snapshot {
	data, err := l.medium.ReadSnapshot()
	if err != nil || len(data) == 0 {
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("discarding unreadable snapshot", "error", err)
		return nil
	}

	return &snap
}
