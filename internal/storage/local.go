// Package storage keeps uploaded binary payloads (request evidence and
// benefit covers) on the local disk under generated names.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Open when no blob is stored under the name.
var ErrNotFound = errors.New("blob not found")

// ErrInvalidName is returned for names that would escape the root.
var ErrInvalidName = errors.New("invalid blob name")

// Local stores blobs as flat files inside one directory.
type Local struct {
	root string
	log  *zap.Logger
}

// NewLocal creates the root directory when missing.
func NewLocal(root string, log *zap.Logger) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Local{root: root, log: log.With(zap.String("blob_root", root))}, nil
}

// Put writes r to name.  A partially written file is removed on error.
func (s *Local) Put(ctx context.Context, name string, r io.Reader) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create blob %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return fmt.Errorf("write blob %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return fmt.Errorf("close blob %s: %w", name, err)
	}
	return nil
}

// Delete removes the blob.  A missing blob is logged and not reported.
func (s *Local) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Warn("blob to delete does not exist", zap.String("name", name))
		return nil
	}
	return err
}

// Open returns a reader for the blob.  The caller closes it.
func (s *Local) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Local) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.root, name), nil
}
