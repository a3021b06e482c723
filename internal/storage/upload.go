// Package storage keeps the most recent upload on local disk.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// UploadFileName is the fixed name every upload is stored under.
const UploadFileName = "img_1.jpg"

// ErrNoFile marks an upload request without a file part.
var ErrNoFile = errors.New("no file in upload")

// UploadError reports a missing upload or a failure to persist it.
type UploadError struct {
	Op  string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Op, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Missing returns the UploadError for a request without a file.
func Missing() error {
	return &UploadError{Op: "read", Err: ErrNoFile}
}

// DiskStore writes uploads to a single path under BasePath, replacing the
// previous upload.
type DiskStore struct {
	BasePath string
	mu       sync.Mutex
}

// NewDiskStore returns a store rooted at basePath.
func NewDiskStore(basePath string) *DiskStore {
	return &DiskStore{BasePath: basePath}
}

// Path is where the current upload lives.
func (s *DiskStore) Path() string {
	return filepath.Join(s.BasePath, UploadFileName)
}

// Save replaces the stored upload with the contents of r and returns its path.
// Readers never observe a partially written file.
func (s *DiskStore) Save(r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0750); err != nil {
		return "", &UploadError{Op: "mkdir", Err: err}
	}
	tmp, err := os.CreateTemp(s.BasePath, ".upload-*")
	if err != nil {
		return "", &UploadError{Op: "create", Err: err}
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", &UploadError{Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &UploadError{Op: "write", Err: err}
	}
	dest := s.Path()
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", &UploadError{Op: "rename", Err: err}
	}
	return dest, nil
}
