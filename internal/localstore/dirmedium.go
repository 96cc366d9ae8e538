package localstore

import (
	"fmt"
	"os"
	"path/filepath"
)

const snapshotFile = "snapshot.json"

// DirMedium stores the snapshot and its backups under a directory on the
// local filesystem.
type DirMedium struct {
	dir string
}

func NewDirMedium(dir string) *DirMedium {
	return &DirMedium{dir: dir}
}

func (m *DirMedium) ReadSnapshot() ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, snapshotFile))
	if err != nil {
		// Missing or unreadable snapshots are indistinguishable to callers.
		return nil, nil
	}

	return data, nil
}

func (m *DirMedium) WriteSnapshot(data []byte) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	// Write-then-rename so a crash mid-write never truncates the previous
	// snapshot.
	tmp := filepath.Join(m.dir, snapshotFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	if err := os.Rename(tmp, filepath.Join(m.dir, snapshotFile)); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	return nil
}

func (m *DirMedium) WriteBackup(name string, data []byte) error {
	backupDir := filepath.Join(m.dir, "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("creating backup dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(backupDir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}

	return nil
}
