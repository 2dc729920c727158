package daap

import (
	"sort"
	"sync"
)

// ContainerEntry is one playlist membership: the track's item id plus the
// playlist-local container id that was assigned when the track was first
// observed in the playlist
type ContainerEntry struct {
	ItemID      uint32
	ContainerID uint32
}

// Container tracks the DAAP-visible state of one playlist: its entry snapshot
// with container ids and its per-revision deletion history. Container ids are
// assigned strictly increasing on first observation and are never reused or
// reassigned, even across deletions. Since a reorder keeps the ids of the
// surviving entries, ids increase in the order of first appearance, not
// necessarily in the current entry order
type Container struct {
	mu              sync.Mutex
	playlistID      uint32
	entries         []ContainerEntry
	nextContainerID uint32
	deletions       map[uint32][]uint32
}

// NewContainer creates the container state for a playlist
func NewContainer(playlistID uint32) *Container {
	return &Container{
		playlistID:      playlistID,
		nextContainerID: 1,
		deletions:       make(map[uint32][]uint32),
	}
}

// Refresh reconciles the snapshot with the authoritative, ordered track id
// sequence of the playlist and records the result under revision rev.
// Returned are the item ids that were present in the snapshot and are no
// longer in ids. Surviving entries keep their container ids; fresh entries
// get newly assigned ones. Refreshes for the same playlist serialize on the
// container lock
func (me *Container) Refresh(ids []uint32, rev uint32) (removed []uint32) {
	me.mu.Lock()
	defer me.mu.Unlock()

	// queue the container ids of the current entries per item id so that
	// duplicate playlist entries keep their ids pairwise in order
	avail := make(map[uint32][]uint32, len(me.entries))
	for _, e := range me.entries {
		avail[e.ItemID] = append(avail[e.ItemID], e.ContainerID)
	}

	entries := make([]ContainerEntry, 0, len(ids))
	for _, id := range ids {
		if cids := avail[id]; len(cids) > 0 {
			entries = append(entries, ContainerEntry{ItemID: id, ContainerID: cids[0]})
			avail[id] = cids[1:]
			continue
		}
		entries = append(entries, ContainerEntry{ItemID: id, ContainerID: me.nextContainerID})
		me.nextContainerID++
	}

	// whatever was not consumed has been removed from the playlist
	for id, cids := range avail {
		for range cids {
			removed = append(removed, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })

	me.entries = entries

	if len(removed) > 0 {
		me.deletions[rev] = append(me.deletions[rev], removed...)
		for r := range me.deletions {
			if r+revisionHistory < rev {
				delete(me.deletions, r)
			}
		}
		log.Tracef("playlist %d: %d entries removed at revision %d", me.playlistID, len(removed), rev)
	}
	return
}

// Entries returns a copy of the current snapshot
func (me *Container) Entries() []ContainerEntry {
	me.mu.Lock()
	defer me.mu.Unlock()
	entries := make([]ContainerEntry, len(me.entries))
	copy(entries, me.entries)
	return entries
}

// DeletedSince returns the union of the item ids removed in the revisions
// after fromRev, sorted ascending
func (me *Container) DeletedSince(fromRev uint32) []uint32 {
	me.mu.Lock()
	defer me.mu.Unlock()

	set := make(map[uint32]struct{})
	for rev, ids := range me.deletions {
		if rev > fromRev {
			for _, id := range ids {
				set[id] = struct{}{}
			}
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
