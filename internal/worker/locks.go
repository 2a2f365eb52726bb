package worker

import "sync"

// repoLocks serializes analyses of the same repository within one process.
type repoLocks struct {
	mu    sync.Mutex
	locks map[string]*repoLock
}

type repoLock struct {
	mu   sync.Mutex
	refs int
}

func newRepoLocks() *repoLocks {
	return &repoLocks{locks: make(map[string]*repoLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (l *repoLocks) Lock(key string) func() {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &repoLock{}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *repoLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
