package kvstore

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// FS keeps one file per key under a base directory.
type FS struct{ base string }

func NewFS(base string) (*FS, error) {
	if base == "" {
		base = "./data/state"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FS{base: base}, nil
}

func (s *FS) path(key string) string {
	return filepath.Join(s.base, url.PathEscape(key)+".json")
}

func (s *FS) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

// Set writes through a temp file and rename so a crash never leaves a
// half-written state file behind.
func (s *FS) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return errors.New("empty key")
	}
	dst := s.path(key)
	tmp, err := os.CreateTemp(s.base, ".kv-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (s *FS) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
