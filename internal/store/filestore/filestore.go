// Package filestore persists the document as a single JSON file.
package filestore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/quickcart/internal/model"
	"github.com/xenking/quickcart/internal/store"
)

var _ store.Backend = (*Store)(nil)

// Store reads and writes the document at a fixed path.
type Store struct {
	path string
}

// New returns a Store for the file at path. The file is not touched until
// the first Load or Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the document file.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the whole document. A missing or malformed file
// is an error; provisioning the file is the operator's job.
func (s *Store) Load(_ context.Context) (*model.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.path)
	}
	doc, err := model.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", s.path)
	}
	return doc, nil
}

// Save replaces the file with doc. The new content is written to a temporary
// file in the same directory and renamed over the target, so readers see
// either the old or the new document.
func (s *Store) Save(_ context.Context, doc *model.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrapf(err, "replace %s", s.path)
	}
	return nil
}
