package app

import "sync"

// partyLocks serializes mutations per party id. Operations on different
// parties proceed without contention; only callers touching the same party
// queue behind one another. Entries are refcounted so closed parties do not
// leak lock state.
type partyLocks struct {
	mu    sync.Mutex
	locks map[string]*partyLock
}

type partyLock struct {
	mu   sync.Mutex
	refs int
}

func newPartyLocks() *partyLocks {
	return &partyLocks{locks: make(map[string]*partyLock)}
}

// lock acquires the mutex for the given party id, creating it on first use.
func (l *partyLocks) lock(partyID string) {
	l.mu.Lock()
	entry := l.locks[partyID]
	if entry == nil {
		entry = &partyLock{}
		l.locks[partyID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// unlock releases the mutex for the given party id and drops the entry once
// no caller holds or waits on it.
func (l *partyLocks) unlock(partyID string) {
	l.mu.Lock()
	entry := l.locks[partyID]
	l.mu.Unlock()
	if entry == nil {
		return
	}

	entry.mu.Unlock()

	l.mu.Lock()
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, partyID)
	}
	l.mu.Unlock()
}
