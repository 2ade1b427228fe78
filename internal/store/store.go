// Package store provides the transactional boundary around the persisted
// document. Backends only know how to load and save a whole document;
// Documents adds locking, optimistic retry and error classification.
package store

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/model"
)

var (
	// ErrIO tags every failure to read or write the backing medium.
	ErrIO = errors.New("store unavailable")
	// ErrConflict is returned by a backend Save when the document changed
	// since it was loaded.
	ErrConflict = errors.New("document was modified concurrently")
)

// Backend loads and saves the whole document. Save fully overwrites the
// previous content; there are no partial writes.
type Backend interface {
	Load(ctx context.Context) (*model.Document, error)
	Save(ctx context.Context, doc *model.Document) error
}

// Locker provides exclusive access to the document for one
// load-mutate-save cycle. The returned unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context) (func(), error)
}

// Options tunes Documents.
type Options struct {
	// MaxAttempts bounds how many times an Update is retried after ErrConflict.
	MaxAttempts int
}

// Documents runs read-only views and read-modify-write updates against a
// Backend.
type Documents struct {
	backend     Backend
	locker      Locker
	maxAttempts int
}

// NewDocuments creates Documents over the given backend and locker. A nil
// locker defaults to an in-process mutex.
func NewDocuments(backend Backend, locker Locker, opts Options) *Documents {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Documents{
		backend:     backend,
		locker:      locker,
		maxAttempts: opts.MaxAttempts,
	}
}

// View loads one snapshot and passes it to fn. Changes made by fn are
// discarded.
func (d *Documents) View(ctx context.Context, fn func(doc *model.Document) error) error {
	doc, err := d.load(ctx)
	if err != nil {
		return err
	}
	return fn(doc)
}

// Update holds the lock from load through save. fn mutates the snapshot in
// memory; the snapshot is saved exactly once iff fn returns nil, so a failed
// fn leaves the persisted document untouched, as does a snapshot that no
// longer passes model validation. When the backend reports
// ErrConflict the whole cycle is retried with a fresh snapshot.
func (d *Documents) Update(ctx context.Context, fn func(doc *model.Document) error) error {
	unlock, err := d.locker.Lock(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire document lock")
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		err := d.updateOnce(ctx, fn)
		if !errors.Is(err, ErrConflict) || attempt >= d.maxAttempts {
			return err
		}
		zctx.From(ctx).Debug("Document conflict, retrying",
			zap.Int("attempt", attempt),
		)
	}
}

func (d *Documents) updateOnce(ctx context.Context, fn func(doc *model.Document) error) error {
	doc, err := d.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	// A snapshot that would not load again is never written.
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := d.backend.Save(ctx, doc); err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		return ioError(err, "save document")
	}
	return nil
}

func (d *Documents) load(ctx context.Context) (*model.Document, error) {
	doc, err := d.backend.Load(ctx)
	if err != nil {
		return nil, ioError(err, "load document")
	}
	return doc, nil
}

// Ping loads the document and reports whether the backend is usable.
func (d *Documents) Ping(ctx context.Context) error {
	_, err := d.load(ctx)
	return err
}

// ioError tags err with ErrIO while keeping the original chain reachable.
func ioError(err error, msg string) error {
	if errors.Is(err, ErrIO) {
		return errors.Wrap(err, msg)
	}
	return &ioErr{msg: msg, err: err}
}

type ioErr struct {
	msg string
	err error
}

func (e *ioErr) Error() string { return e.msg + ": " + e.err.Error() }

func (e *ioErr) Is(target error) bool { return target == ErrIO }

func (e *ioErr) Unwrap() error { return e.err }
