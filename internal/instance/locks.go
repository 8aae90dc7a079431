package instance

import "sync"

// nameLocks serializes lifecycle and metadata mutations per instance name.
// Operations on different names proceed concurrently; concurrent calls on
// the same name would otherwise race on the pid and metadata sidecars.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newNameLocks() *nameLocks {
	return &nameLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for name and returns its unlock function.
func (n *nameLocks) acquire(name string) func() {
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
