package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// GenerateSnapshot writes a consistent copy of the database next to the
// live file using VACUUM INTO. The write goes to a temp file first so a
// half-written snapshot never replaces a valid one.
func (s *SQLiteStore) GenerateSnapshot(ctx context.Context) error {
	path, err := s.SnapshotPath()
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale snapshot temp file: %w", err)
	}

	// VACUUM INTO writes a clean, self-contained copy (WAL-safe, non-blocking).
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", tmp)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vacuum into snapshot: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize snapshot: %w", err)
	}

	return nil
}

// SnapshotPath returns the filesystem path snapshots are written to.
// In-memory databases cannot be snapshotted.
func (s *SQLiteStore) SnapshotPath() (string, error) {
	if s.path == "" || s.path == ":memory:" {
		return "", fmt.Errorf("snapshot requires a file-backed database")
	}

	dir := filepath.Dir(s.path)
	base := filepath.Base(s.path)
	return filepath.Join(dir, base+".snapshot"), nil
}
