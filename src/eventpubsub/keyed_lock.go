package eventpubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
)

// KeyedLock provides an exclusive lock per string key. Acquisition is
// bounded by the caller's context so contention cannot park a consumer
// indefinitely.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyedLockEntry
}

type keyedLockEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*keyedLockEntry)}
}

// Acquire takes the lock for key, blocking until it is available or the
// context expires. On context expiry it returns ErrLockTimeout.
func (l *KeyedLock) Acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	entry, found := l.locks[key]
	if !found {
		entry = &keyedLockEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(key, entry, false)
		return fmt.Errorf("Acquire: key %s: %w", key, eventmodels.ErrLockTimeout)
	}
}

// Release frees the lock for key. It must only be called after a successful
// Acquire.
func (l *KeyedLock) Release(key string) {
	l.mu.Lock()
	entry, found := l.locks[key]
	l.mu.Unlock()

	if !found {
		return
	}

	l.release(key, entry, true)
}

func (l *KeyedLock) release(key string, entry *keyedLockEntry, held bool) {
	if held {
		<-entry.ch
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}
