package service

import (
	"context"
	"sync"
)

// entityLocks serializes work per entity id. Entries are reference counted and
// removed once no caller holds or waits on them, so the map only grows with
// the number of entities in flight.
type entityLocks struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	token chan struct{}
	refs  int
}

func newEntityLocks() *entityLocks {
	return &entityLocks{locks: make(map[string]*entityLock)}
}

// acquire blocks until the lock for id is held or ctx is done.
func (l *entityLocks) acquire(ctx context.Context, id string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &entityLock{token: make(chan struct{}, 1)}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.token <- struct{}{}:
		if err := ctx.Err(); err != nil {
			<-lk.token
			l.drop(id, lk)
			return nil, err
		}
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.token
				l.drop(id, lk)
			})
		}, nil
	case <-ctx.Done():
		l.drop(id, lk)
		return nil, ctx.Err()
	}
}

func (l *entityLocks) drop(id string, lk *entityLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, id)
	}
}

// size returns the number of ids currently tracked.
func (l *entityLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
