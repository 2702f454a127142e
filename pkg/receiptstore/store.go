// Package receiptstore persists proof-of-transfer files on local disk,
// keyed by payment id plus an extension derived from the declared content
// type. The store is an opaque collaborator to the billing engine: it hands
// back a path reference and serves bytes on demand.
package receiptstore

import (
	"fmt"
	"os"
	"path/filepath"
)

type Store struct {
	baseDir string
}

// New returns a store rooted at baseDir, creating it if needed.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipt dir %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Save writes data under name and returns the stored path reference.
// An existing file for the same name is replaced (re-attached receipt).
func (s *Store) Save(name string, data []byte) (string, error) {
	path := filepath.Join(s.baseDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write receipt %s: %w", name, err)
	}
	return path, nil
}

// Open returns the stored bytes for a previously saved reference.
func (s *Store) Open(ref string) ([]byte, error) {
	return os.ReadFile(filepath.Clean(ref))
}
