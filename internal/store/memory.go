package store

import (
	"context"
	"sync"

	"github.com/xenking/quickcart/internal/model"
)

// Memory is an in-process Backend. Every Load returns a private copy and
// every Save replaces the held document with a copy, so callers observe the
// same whole-document semantics as the durable backends. Save fails with
// ErrConflict when the document was saved after the caller loaded it.
type Memory struct {
	mu  sync.Mutex
	doc *model.Document
}

var _ Backend = (*Memory)(nil)

// NewMemory creates a Memory backend holding a copy of doc.
func NewMemory(doc *model.Document) *Memory {
	if doc == nil {
		doc = model.NewDocument()
	}
	return &Memory{doc: doc.Clone()}
}

// Load returns a copy of the current document.
func (m *Memory) Load(_ context.Context) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone(), nil
}

// Save stores a copy of doc and bumps its version.
func (m *Memory) Save(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.Version != m.doc.Version {
		return ErrConflict
	}
	next := doc.Clone()
	next.Version = m.doc.Version + 1
	m.doc = next
	doc.Version = next.Version
	return nil
}

// Snapshot returns a copy of the held document for inspection.
func (m *Memory) Snapshot() *model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}
