package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BackupHandle identifies one point-in-time snapshot of the store.
type BackupHandle struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupManager owns snapshot artifacts for a store, independently of any
// single pipeline run. When backups are enabled a snapshot must complete
// before any destructive write, and restore returns the store to its
// pre-run state after a persistence failure.
type BackupManager struct {
	Dir string
}

// NewBackupManager uses dir for backup artifacts, defaulting to
// data/backups next to the working directory.
func NewBackupManager(dir string) *BackupManager {
	if dir == "" {
		dir = filepath.Join("data", "backups")
	}
	return &BackupManager{Dir: dir}
}

// Snapshot takes a consistent copy of the store. Failure here means the
// backup medium is unreachable; callers treat that as fatal for the run.
func (bm *BackupManager) Snapshot(s *Store) (*BackupHandle, error) {
	if err := os.MkdirAll(bm.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup dir %s unavailable: %w", bm.Dir, err)
	}
	now := time.Now()
	dest := filepath.Join(bm.Dir, fmt.Sprintf("backup_%s.db", now.Format("20060102_150405.000")))
	if err := s.SnapshotTo(dest); err != nil {
		return nil, err
	}
	fmt.Printf("💾 Backup: snapshot written to %s\n", dest)
	return &BackupHandle{Path: dest, CreatedAt: now}, nil
}

// Restore rolls the store back to the snapshot behind handle.
func (bm *BackupManager) Restore(handle *BackupHandle, s *Store) error {
	if handle == nil {
		return fmt.Errorf("no backup handle to restore from")
	}
	if _, err := os.Stat(handle.Path); err != nil {
		return fmt.Errorf("backup artifact %s unavailable: %w", handle.Path, err)
	}
	if err := s.RestoreFrom(handle.Path); err != nil {
		return err
	}
	fmt.Printf("💾 Backup: store restored from %s\n", handle.Path)
	return nil
}

// Prune removes backup artifacts older than keep. Retention is a
// configuration concern; the pipeline never calls this on its own.
func (bm *BackupManager) Prune(keep time.Duration) error {
	entries, err := os.ReadDir(bm.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cutoff := time.Now().Add(-keep)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.IsDir() && info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(bm.Dir, entry.Name()))
		}
	}
	return nil
}
