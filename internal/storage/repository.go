// Package storage holds the three persisted JSON files (accounts, the order
// book, and the trade ledger) behind a single file-backed load/save type.
// Repository always reads and writes a file on disk; there is no in-memory
// implementation, so tests point it at a temporary directory.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Repository persists a single JSON-serializable aggregate to a named file.
// Missing files are treated as an absent value by Load, matching §6.2's
// "On load, missing files are treated as empty state."
type Repository[T any] struct {
	path string
}

func NewRepository[T any](path string) *Repository[T] {
	return &Repository[T]{path: path}
}

// Load reads the file into dst. If the file does not exist, dst is left
// untouched and ok is false so the caller can apply its own zero value.
func (r *Repository[T]) Load(dst *T) (ok bool, err error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Save serializes v and writes it atomically: write to a temp file in the
// same directory, then rename over the target. This preserves the
// post-condition that after any successful operation the file reflects the
// in-memory state, even if the process is killed mid-write.
func (r *Repository[T]) Save(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Remove deletes the backing file, treating a missing file as success.
func (r *Repository[T]) Remove() error {
	err := os.Remove(r.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path reports the backing file path, mostly for diagnostics/logging.
func (r *Repository[T]) Path() string {
	return r.path
}
