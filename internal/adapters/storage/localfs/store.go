package localfs

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Store keeps one JSON file per key under a base directory. Writes go to a
// temp file first and are renamed into place, so readers in other processes
// never see half a value.
type Store struct {
	base string
	mu   sync.Mutex
}

func New(base string) *Store { return &Store{base: base} }

func (s *Store) path(key string) string {
	return filepath.Join(s.base, url.QueryEscape(key)+".json")
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "read %s", key)
	}
	return b, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.base, 0755); err != nil {
		return errors.Wrap(err, "create storage dir")
	}
	tmp, err := os.CreateTemp(s.base, ".kv-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "write %s", key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "write %s", key)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "replace %s", key)
	}
	return nil
}
