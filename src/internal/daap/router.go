package daap

import (
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"gitlab.com/mipimipi/daapsrv/src/internal/config"
)

// URL patterns of the database routes
var (
	reItems          = regexp.MustCompile(`^/databases/(\d+)/items$`)
	reItemStream     = regexp.MustCompile(`^/databases/(\d+)/items/(\d+)(?:\.[A-Za-z0-9]+)?$`)
	reItemArtwork    = regexp.MustCompile(`^/databases/(\d+)/items/(\d+)/extra_data/artwork$`)
	reContainers     = regexp.MustCompile(`^/databases/(\d+)/containers$`)
	reContainerItems = regexp.MustCompile(`^/databases/(\d+)/containers/(\d+)/items$`)
)

// route dispatches one request. /server-info, /content-codes and /login are
// open; every other endpoint requires a known session id in the session-id
// query parameter and answers 403 otherwise
func (me *Server) route(w *responseWriter, r *request) (close bool) {
	switch r.path {
	case "/server-info":
		return me.handleServerInfo(w, r)
	case "/content-codes":
		return me.handleContentCodes(w, r)
	case "/login":
		return me.handleLogin(w, r)
	}

	sid := r.intQuery("session-id")
	if !me.sessions.Exists(sid) {
		_ = w.writeEmpty(http.StatusForbidden)
		return false
	}
	me.sessions.Touch(sid)

	switch r.path {
	case "/logout":
		return me.handleLogout(w, r, sid)
	case "/update":
		return me.handleUpdate(w, r)
	case "/databases":
		return me.handleDatabases(w, r)
	}

	if m := reItemArtwork.FindStringSubmatch(r.path); m != nil {
		return me.handleArtwork(w, r, num(m[1]), num(m[2]))
	}
	if m := reItemStream.FindStringSubmatch(r.path); m != nil {
		return me.handleStream(w, r, num(m[1]), num(m[2]))
	}
	if m := reItems.FindStringSubmatch(r.path); m != nil {
		return me.handleItems(w, r, num(m[1]))
	}
	if m := reContainerItems.FindStringSubmatch(r.path); m != nil {
		return me.handleContainerItems(w, r, num(m[1]), num(m[2]))
	}
	if m := reContainers.FindStringSubmatch(r.path); m != nil {
		return me.handleContainers(w, r, num(m[1]))
	}

	_ = w.writeEmpty(http.StatusForbidden)
	return false
}

// num converts a digits-only regex submatch
func num(s string) uint32 {
	v, _ := strconv.ParseUint(s, 10, 32)
	return uint32(v)
}

func (me *Server) handleServerInfo(w *responseWriter, r *request) bool {
	timeout := uint32(me.cfg.IdleTimeout() / time.Second)
	_ = w.writeDMAP(serverInfoTree(me.cfg.Name, me.cfg.AuthMethod, timeout))
	return false
}

func (me *Server) handleContentCodes(w *responseWriter, r *request) bool {
	_ = w.writeDMAP(contentCodesTree())
	return false
}

// checkCreds validates the basic auth credentials of a request against the
// configured auth method
func (me *Server) checkCreds(r *request) bool {
	switch me.cfg.AuthMethod {
	case config.AuthPassword:
		if !r.hasAuth {
			return false
		}
		for _, cred := range me.cfg.Credentials {
			if r.password == cred.Password {
				return true
			}
		}
		return false
	case config.AuthUserPass:
		if !r.hasAuth {
			return false
		}
		for _, cred := range me.cfg.Credentials {
			if r.username == cred.User && r.password == cred.Password {
				return true
			}
		}
		return false
	}
	return true
}

func (me *Server) handleLogin(w *responseWriter, r *request) bool {
	// idle sessions are reaped on every login attempt
	for _, s := range me.sessions.ExpireIdle(time.Now()) {
		expired := s
		fireCallback("user_logout", func() {
			if me.OnLogout != nil {
				me.OnLogout(expired)
			}
		})
	}

	if !me.checkCreds(r) {
		_ = w.writeAuthChallenge(me.cfg.Name)
		return false
	}

	id, err := me.sessions.Login(r.remoteAddr, r.username)
	if err != nil {
		// the user_login event must not fire for a rejected login
		_ = w.writeError(http.StatusServiceUnavailable, "too many users")
		return false
	}

	fireCallback("user_login", func() {
		if me.OnLogin != nil {
			me.OnLogin(&Session{ID: id, RemoteAddr: r.remoteAddr, Username: r.username})
		}
	})
	_ = w.writeDMAP(loginTree(id))
	return false
}

func (me *Server) handleLogout(w *responseWriter, r *request, sid uint32) bool {
	if s := me.sessions.Logout(sid); s != nil {
		fireCallback("user_logout", func() {
			if me.OnLogout != nil {
				me.OnLogout(s)
			}
		})
	}
	_ = w.writeEmpty(http.StatusOK)
	return true
}

func (me *Server) handleUpdate(w *responseWriter, r *request) bool {
	rev, ok := me.revisions.WaitForUpdate(r.intQuery("revision-number"))
	if !ok {
		// woken by shutdown
		_ = w.writeEmpty(http.StatusNotFound)
		return true
	}
	_ = w.writeDMAP(updateTree(rev))
	return false
}

func (me *Server) handleDatabases(w *responseWriter, r *request) bool {
	fireCallback("database_requested", me.OnDatabaseRequested)
	_ = w.writeDMAP(databasesTree(
		me.lib.DatabaseID(),
		me.lib.DatabaseName(),
		len(me.lib.Tracks()),
		len(me.lib.Playlists()),
	))
	return false
}

func (me *Server) handleItems(w *responseWriter, r *request, dbID uint32) bool {
	if dbID != me.lib.DatabaseID() {
		_ = w.writeError(http.StatusBadRequest, "bad request")
		return false
	}

	delta := r.intQuery("delta")
	var deleted []uint32
	if delta > 0 {
		deleted = me.revisions.DeletedSince(delta)
	}
	_ = w.writeDMAP(trackListingTree(me.lib.Tracks(), r.query.Get("meta"), delta > 0, deleted))
	return false
}

func (me *Server) handleStream(w *responseWriter, r *request, dbID, trackID uint32) bool {
	if dbID != me.lib.DatabaseID() {
		_ = w.writeError(http.StatusBadRequest, "bad request")
		return false
	}
	t := me.lib.LookupTrack(trackID)
	if t == nil {
		_ = w.writeError(http.StatusBadRequest, "bad request")
		return false
	}

	track := t
	fireCallback("track_requested", func() {
		if me.OnTrackRequested != nil {
			me.OnTrackRequested(track)
		}
	})

	src, length, err := me.lib.OpenAudio(t)
	if err != nil || src == nil {
		// body preserved for client compatibility
		_ = w.writeError(http.StatusInternalServerError, "no file")
		return true
	}
	if c, ok := src.(interface{ Close() error }); ok {
		defer c.Close()
	}

	var offset int64
	if r.hasRange && r.rangeStart > 0 && r.rangeStart < length {
		offset = r.rangeStart
		if _, err = src.Seek(offset, io.SeekStart); err != nil {
			_ = w.writeError(http.StatusInternalServerError, "no file")
			return true
		}
	}
	_ = w.writeFile(src, length, offset, audioContentType(t.Format))
	return true
}

func (me *Server) handleArtwork(w *responseWriter, r *request, dbID, trackID uint32) bool {
	if dbID != me.lib.DatabaseID() {
		_ = w.writeError(http.StatusBadRequest, "bad request")
		return true
	}
	t := me.lib.LookupTrack(trackID)
	if t == nil {
		_ = w.writeError(http.StatusBadRequest, "bad request")
		return true
	}

	aw, err := me.lib.Artwork(t)
	if err != nil || aw == nil {
		_ = w.writeEmpty(http.StatusNotFound)
		return true
	}
	_ = w.writeArtwork(aw.Data, aw.Mime)
	return true
}

func (me *Server) handleContainers(w *responseWriter, r *request, dbID uint32) bool {
	if dbID != me.lib.DatabaseID() {
		_ = w.writeError(http.StatusBadRequest, "bad request")
		return false
	}
	_ = w.writeDMAP(playlistListingTree(me.lib.Playlists()))
	return false
}

func (me *Server) handleContainerItems(w *responseWriter, r *request, dbID, plID uint32) bool {
	if dbID != me.lib.DatabaseID() {
		_ = w.writeError(http.StatusBadRequest, "bad request")
		return false
	}
	pl := me.lib.LookupPlaylist(plID)
	if pl == nil {
		_ = w.writeError(http.StatusBadRequest, "bad request")
		return false
	}

	// the refresh serializes on the container lock, so concurrent requests
	// for the same playlist are safe
	ctr := me.container(pl.ID)
	ctr.Refresh(pl.TrackIDs, me.revisions.Current())

	delta := r.intQuery("delta")
	var deleted []uint32
	if delta > 0 {
		deleted = ctr.DeletedSince(delta)
	}
	_ = w.writeDMAP(containerItemsTree(ctr.Entries(), delta > 0, deleted))
	return false
}
