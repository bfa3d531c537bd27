package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Medium is the durable home of the serialized lead collection.
//
// Load returns the stored bytes and a version stamp; nil data means nothing
// has been stored yet. Save must replace the stored bytes atomically with
// respect to Load. Media shared between processes must reject a Save whose
// version no longer matches the stored one with ErrConflict.
type Medium interface {
	Load(ctx context.Context) ([]byte, int64, error)
	Save(ctx context.Context, data []byte, version int64) error
}

// FileMedium keeps the collection in a single JSON file. It is safe for one
// process only and ignores versions.
type FileMedium struct {
	path string
}

func NewFileMedium(path string) (*FileMedium, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileMedium{path: path}, nil
}

func (m *FileMedium) Path() string {
	return m.path
}

func (m *FileMedium) Load(_ context.Context) ([]byte, int64, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", m.path, err)
	}
	return data, 0, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target, so readers see either the old or the new collection.
func (m *FileMedium) Save(_ context.Context, data []byte, _ int64) (err error) {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(m.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace %s: %w", m.path, err)
	}
	return nil
}
