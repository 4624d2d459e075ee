package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

func (fp FileFingerprint) modTime() string {
	return fp.ModTime.UTC().Format(time.RFC3339Nano)
}

// unchanged reports whether table was last loaded from a file with the
// same size and modification time.
func (s *Store) unchanged(table string, fp FileFingerprint) (bool, error) {
	var size int64
	var mod string
	err := s.db.QueryRow(`SELECT size, mod_time FROM load_meta WHERE table_name = ?`, table).Scan(&size, &mod)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read load metadata: %w", err)
	}
	return size == fp.Size && mod == fp.modTime(), nil
}

func (s *Store) recordFingerprint(table string, fp FileFingerprint) error {
	if _, err := s.db.Exec(`DELETE FROM load_meta WHERE table_name = ?`, table); err != nil {
		return fmt.Errorf("write load metadata: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO load_meta VALUES (?, ?, ?)`, table, fp.Size, fp.modTime()); err != nil {
		return fmt.Errorf("write load metadata: %w", err)
	}
	return nil
}

func (s *Store) forgetFingerprint(table string) error {
	_, err := s.db.Exec(`DELETE FROM load_meta WHERE table_name = ?`, table)
	return err
}
