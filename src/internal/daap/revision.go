package daap

import (
	"sort"
	"sync"
)

// revisionHistory bounds the number of revisions for which deletion sets are
// kept. Clients whose revision fell out of the history get an empty deletion
// set and fall back to a full listing
const revisionHistory = 128

// RevisionManager holds the global library revision and, per revision, the
// set of track ids deleted between the previous revision and it. /update
// long-polls block on the condition variable until the revision advances or
// the server stops
type RevisionManager struct {
	mu        sync.Mutex
	cond      *sync.Cond
	rev       uint32
	deletions map[uint32][]uint32
	stopped   bool
}

// NewRevisionManager creates a revision manager. The initial revision is 1:
// the first answer to /update after a change is 2
func NewRevisionManager() *RevisionManager {
	me := &RevisionManager{
		rev:       1,
		deletions: make(map[uint32][]uint32),
	}
	me.cond = sync.NewCond(&me.mu)
	return me
}

// Current returns the current revision
func (me *RevisionManager) Current() uint32 {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.rev
}

// Bump atomically advances the revision, records the ids deleted since the
// previous revision and wakes all /update waiters
func (me *RevisionManager) Bump(deleted []uint32) uint32 {
	me.mu.Lock()
	defer me.mu.Unlock()

	me.rev++
	if len(deleted) > 0 {
		me.deletions[me.rev] = append([]uint32(nil), deleted...)
	}
	// prune deletion sets that fell out of the history window
	for rev := range me.deletions {
		if rev+revisionHistory < me.rev {
			delete(me.deletions, rev)
		}
	}
	log.Tracef("revision bumped to %d (%d deletions)", me.rev, len(deleted))

	me.cond.Broadcast()
	return me.rev
}

// WaitForUpdate blocks until the current revision exceeds clientRev or the
// manager is stopped. It returns the current revision; ok is false when the
// return was caused by a stop
func (me *RevisionManager) WaitForUpdate(clientRev uint32) (rev uint32, ok bool) {
	me.mu.Lock()
	defer me.mu.Unlock()
	for me.rev <= clientRev && !me.stopped {
		me.cond.Wait()
	}
	return me.rev, !me.stopped
}

// DeletedSince returns the union of the deletion sets of the revisions
// (fromRev+1)..current, sorted ascending. Pruned or unknown revisions
// contribute the empty set
func (me *RevisionManager) DeletedSince(fromRev uint32) []uint32 {
	me.mu.Lock()
	defer me.mu.Unlock()

	set := make(map[uint32]struct{})
	for rev := fromRev + 1; rev <= me.rev; rev++ {
		for _, id := range me.deletions[rev] {
			set[id] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	ids := make([]uint32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stop wakes all waiters. Subsequent WaitForUpdate calls return immediately
// with ok=false
func (me *RevisionManager) Stop() {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.stopped = true
	me.cond.Broadcast()
}
