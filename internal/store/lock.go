package store

import "context"

// LocalLocker is a single-writer mutex for one process. Unlike sync.Mutex it
// gives up when the context is cancelled while waiting.
type LocalLocker struct {
	sem chan struct{}
}

var _ Locker = (*LocalLocker)(nil)

// NewLocalLocker creates an unlocked LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: make(chan struct{}, 1)}
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
