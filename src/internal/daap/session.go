// Package daap implements the DAAP protocol core: the HTTP/1.1 subset that
// DAAP clients speak, the request router, sessions, the revision machine for
// incremental updates and the mDNS service advertisement
package daap

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	l "github.com/sirupsen/logrus"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "daap"})

// Session is the state of one logged-in client
type Session struct {
	ID         uint32
	RemoteAddr string
	Username   string
	LastAction time.Time
}

// ErrTooManyUsers is returned by Login when the max-user cap is reached
var ErrTooManyUsers = fmt.Errorf("too many users")

// SessionManager issues session ids at /login and tracks per-session
// activity for idle expiry. All accesses to the session map, reads included,
// serialize on its lock
type SessionManager struct {
	mu       sync.Mutex
	sessions map[uint32]*Session
	timeout  time.Duration
	maxUsers int // 0 = unlimited
	rnd      *rand.Rand
	now      func() time.Time
}

// NewSessionManager creates a session manager with the given idle timeout and
// user cap (0 = unlimited)
func NewSessionManager(timeout time.Duration, maxUsers int) *SessionManager {
	return &SessionManager{
		sessions: make(map[uint32]*Session),
		timeout:  timeout,
		maxUsers: maxUsers,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// Login creates a new session and returns its id. The id is a random
// positive 31 bit integer that is not in use by another session
func (me *SessionManager) Login(remoteAddr, username string) (id uint32, err error) {
	me.mu.Lock()
	defer me.mu.Unlock()

	if me.maxUsers > 0 && len(me.sessions) >= me.maxUsers {
		return 0, ErrTooManyUsers
	}

	for {
		id = uint32(me.rnd.Int31())
		if id == 0 {
			continue
		}
		if _, taken := me.sessions[id]; !taken {
			break
		}
	}
	me.sessions[id] = &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		Username:   username,
		LastAction: me.now(),
	}
	log.Tracef("session %d created for %s", id, remoteAddr)
	return
}

// Touch updates the last-action timestamp of a session. It's a no-op if the
// session does not exist
func (me *SessionManager) Touch(id uint32) {
	me.mu.Lock()
	defer me.mu.Unlock()
	if s, ok := me.sessions[id]; ok {
		s.LastAction = me.now()
	}
}

// Logout removes a session and returns it, or nil if it did not exist
func (me *SessionManager) Logout(id uint32) *Session {
	me.mu.Lock()
	defer me.mu.Unlock()
	s, ok := me.sessions[id]
	if !ok {
		return nil
	}
	delete(me.sessions, id)
	log.Tracef("session %d removed", id)
	return s
}

// Exists returns true if a session with the given id is known
func (me *SessionManager) Exists(id uint32) bool {
	me.mu.Lock()
	defer me.mu.Unlock()
	_, ok := me.sessions[id]
	return ok
}

// Count returns the number of live sessions
func (me *SessionManager) Count() int {
	me.mu.Lock()
	defer me.mu.Unlock()
	return len(me.sessions)
}

// ExpireIdle removes all sessions whose last action is longer ago than the
// idle timeout and returns them so that the owner can emit logout events
func (me *SessionManager) ExpireIdle(now time.Time) (expired []*Session) {
	me.mu.Lock()
	defer me.mu.Unlock()
	for id, s := range me.sessions {
		if now.Sub(s.LastAction) > me.timeout {
			delete(me.sessions, id)
			expired = append(expired, s)
			log.Tracef("session %d expired", id)
		}
	}
	return
}
