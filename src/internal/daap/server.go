package daap

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"gitlab.com/mipimipi/daapsrv/src/internal/config"
	"gitlab.com/mipimipi/daapsrv/src/internal/content"
)

// Server is the DAAP protocol server. It owns the web server, the session
// and revision managers and the service advertiser; the router methods hold
// non-owning handles to all of them
type Server struct {
	cfg       *config.Cfg
	lib       content.Library
	sessions  *SessionManager
	revisions *RevisionManager
	web       *webServer
	adv       *Advertiser

	mutContainers sync.Mutex
	containers    map[uint32]*Container

	// last seen root track id set, diffed on library changes to derive the
	// per-revision deletion sets
	mutTracks sync.Mutex
	trackIDs  map[uint32]struct{}

	running atomic.Bool

	// Errs communicates fatal server errors to the owner
	Errs chan error

	// optional event callbacks. Panics inside them are caught and logged;
	// they never interrupt the response
	OnLogin             func(*Session)
	OnLogout            func(*Session)
	OnTrackRequested    func(*content.Track)
	OnDatabaseRequested func()
}

// New creates a DAAP server serving lib according to cfg
func New(cfg *config.Cfg, lib content.Library) *Server {
	me := &Server{
		cfg:        cfg,
		lib:        lib,
		sessions:   NewSessionManager(cfg.IdleTimeout(), cfg.MaxUsers),
		revisions:  NewRevisionManager(),
		adv:        NewAdvertiser(newZeroconfRegistrar()),
		containers: make(map[uint32]*Container),
		trackIDs:   make(map[uint32]struct{}),
		Errs:       make(chan error, 1),
	}
	me.web = newWebServer(cfg.Name, me.route)
	me.snapshotTracks()
	lib.OnChange(me.libChanged)
	return me
}

// Run starts the server and blocks until ctx is done. The actual bound port
// is advertised, which may differ from the configured one when that is 0
func (me *Server) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	if err := me.web.listen(me.cfg.Port); err != nil {
		me.Errs <- errors.Wrap(err, "cannot start DAAP server")
		return
	}
	me.running.Store(true)

	if me.cfg.Publish {
		if err := me.Advertise(me.cfg.Name); err != nil {
			me.web.stop()
			me.Errs <- errors.Wrap(err, "cannot advertise DAAP service")
			return
		}
	}

	done := make(chan struct{})
	go func() {
		me.web.serve()
		close(done)
	}()

	select {
	case <-ctx.Done():
		me.Stop()
	case <-done:
	}
	<-done
}

// Advertise registers the mDNS record under the given name at the bound port
func (me *Server) Advertise(name string) error {
	return me.adv.Register(name, me.web.port(),
		me.cfg.AuthMethod != config.AuthNone, me.cfg.MachineID)
}

// Collisions surfaces mDNS name collisions to the owner
func (me *Server) Collisions() <-chan string {
	return me.adv.Collisions()
}

// Port returns the actually bound TCP port
func (me *Server) Port() int {
	return me.web.port()
}

// Stop shuts the server down: the advertised record is withdrawn, all client
// connections are closed and all revision waiters wake up. Handlers that
// were blocked in /update observe the stop and answer 404
func (me *Server) Stop() {
	if !me.running.CompareAndSwap(true, false) {
		return
	}
	log.Trace("stopping DAAP server ...")
	me.adv.Unregister()
	me.revisions.Stop()
	me.web.stop()
	log.Trace("DAAP server stopped")
}

// snapshotTracks replaces the root track id set with the library's current
// one and returns the ids that disappeared since the previous snapshot
func (me *Server) snapshotTracks() (removed []uint32) {
	current := make(map[uint32]struct{})
	for _, t := range me.lib.Tracks() {
		current[t.ID] = struct{}{}
	}

	me.mutTracks.Lock()
	defer me.mutTracks.Unlock()
	for id := range me.trackIDs {
		if _, ok := current[id]; !ok {
			removed = append(removed, id)
		}
	}
	me.trackIDs = current
	return
}

// libChanged is the library change callback: it derives the deleted root
// track ids and advances the revision, waking all /update waiters. The
// library may deliver it on an arbitrary goroutine
func (me *Server) libChanged() {
	removed := me.snapshotTracks()
	rev := me.revisions.Bump(removed)
	log.Tracef("library changed: revision %d, %d tracks removed", rev, len(removed))
}

// container returns the DAAP container state of a playlist, creating it on
// first use
func (me *Server) container(playlistID uint32) *Container {
	me.mutContainers.Lock()
	defer me.mutContainers.Unlock()
	ctr, ok := me.containers[playlistID]
	if !ok {
		ctr = NewContainer(playlistID)
		me.containers[playlistID] = ctr
	}
	return ctr
}

// fireCallback runs a user-registered event callback. Panics are caught and
// logged; they never interrupt the response
func fireCallback(name string, cb func()) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("event handler %s failed: %v", name, r)
		}
	}()
	cb()
}
