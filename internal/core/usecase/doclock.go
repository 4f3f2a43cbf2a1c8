package usecase

import (
	"context"
	"sync"
)

// DocumentLocks serializes work on the same document id inside one process.
// Different ids never block each other.
type DocumentLocks struct {
	mu    sync.Mutex
	locks map[string]*documentLock
}

type documentLock struct {
	mu   sync.Mutex
	refs int
}

func NewDocumentLocks() *DocumentLocks {
	return &DocumentLocks{locks: make(map[string]*documentLock)}
}

// Lock blocks until id is free and returns the matching unlock.
func (l *DocumentLocks) Lock(id string) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &documentLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// LockDocument adapts Lock to ports.DocumentLocker.
func (l *DocumentLocks) LockDocument(_ context.Context, documentID string) (func(), error) {
	return l.Lock(documentID), nil
}

func (l *DocumentLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
