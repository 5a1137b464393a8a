package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// FileStore persists all keys as one JSON document on disk.
// Writers on the same path, in this process or another, take an flock on a
// sibling .lock file, re-read the document and change only their key, so
// concurrent writers never drop each other's keys. Every write replaces the
// document through a temp file and rename, so readers need no lock.
type FileStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewFileStore opens (or creates) the state file at path
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &FileStore{path: path, lock: flock.New(path + ".lock")}

	if _, err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	data, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	return s.update(ctx, func(data map[string]string) bool {
		if prev, ok := data[key]; ok && prev == value {
			return false
		}
		data[key] = value
		return true
	})
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	return s.update(ctx, func(data map[string]string) bool {
		if _, ok := data[key]; !ok {
			return false
		}
		delete(data, key)
		return true
	})
}

// Ping verifies the state directory is still writable
func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *FileStore) Close() error {
	return s.lock.Close()
}

// update applies fn to the latest document under the file lock.
// fn reports whether it changed anything.
func (s *FileStore) update(ctx context.Context, fn func(map[string]string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock state file %s", s.path)
	}
	defer s.lock.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	if !fn(data) {
		return nil
	}
	return s.flush(data)
}

// load reads the whole document; a missing file is an empty one
func (s *FileStore) load() (map[string]string, error) {
	data := make(map[string]string)

	content, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return data, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if len(content) > 0 {
		if err := json.Unmarshal(content, &data); err != nil {
			return nil, fmt.Errorf("failed to parse state file: %w", err)
		}
	}
	return data, nil
}

// flush replaces the document on disk; callers hold the file lock
func (s *FileStore) flush(data map[string]string) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
