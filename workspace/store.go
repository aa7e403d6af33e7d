package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
)

// Store is a workspace file held open for writing. A sidecar lock file
// keeps a second process from saving over it.
type Store struct {
	path string
	lock *flock.Flock
}

// Open takes the lock for path. The file itself need not exist yet.
func Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	lock := flock.New(abs + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, abs)
	}
	log.Debug("Workspace locked", "path", abs)
	return &Store{path: abs, lock: lock}, nil
}

func (s *Store) Path() string { return s.path }

// Exists reports whether the workspace file has been written.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the document. A missing file yields an empty document named
// after the path.
func (s *Store) Load() (Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return New(TitleFor(s.path)), nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to read workspace: %w", err)
	}
	return Decode(data)
}

// Save writes the document through a temp file and a rename so a crash
// never leaves a half-written workspace.
func (s *Store) Save(doc Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	log.Debug("Workspace saved", "path", s.path, "cues", len(doc.Cues), "bytes", len(data))
	return nil
}

// Close releases the lock.
func (s *Store) Close() error {
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release workspace lock: %w", err)
	}
	return nil
}

// ReadFile decodes a workspace without locking it, for read-only tools.
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read workspace: %w", err)
	}
	return Decode(data)
}
