package registry

import "sync"

// namedLocks serializes register/refresh/unregister per endpoint name while
// allowing full concurrency across different names.
type namedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newNamedLocks() *namedLocks {
	return &namedLocks{locks: make(map[string]*sync.Mutex)}
}

func (n *namedLocks) lock(name string) func() {
	n.mu.Lock()
	lock, ok := n.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		n.locks[name] = lock
	}
	n.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
