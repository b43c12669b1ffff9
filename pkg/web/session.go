package web

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"libadmin/pkg/apiclient"
	"libadmin/pkg/grid"
	"libadmin/pkg/models"
)

// FlashMessage is shown once on the next rendered page.
type FlashMessage struct {
	Type    string // "success", "error", "info"
	Message string
}

// UserSession is one signed-in browser. It owns the API client carrying the
// user's token and the books grid with the user's unsaved edits.
type UserSession struct {
	ID       string
	Username string
	UserID   models.ID
	Role     models.Role
	Client   *apiclient.Client
	Books    *grid.Grid[models.Book]

	mu       sync.Mutex
	lastSeen time.Time
	flash    *FlashMessage
}

func (s *UserSession) IsLibrarian() bool { return s.Role == models.RoleLibrarian }

func (s *UserSession) Flash(kind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = &FlashMessage{Type: kind, Message: msg}
}

// PopFlash returns the pending flash message and clears it.
func (s *UserSession) PopFlash() *FlashMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flash
	s.flash = nil
	return f
}

func (s *UserSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *UserSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionStore keeps sessions in memory, keyed by the cookie value.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*UserSession
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*UserSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a session for an authenticated client.
func (st *SessionStore) Create(sess *UserSession) *UserSession {
	sess.ID = uuid.NewString()
	sess.lastSeen = st.now()

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()
	return sess
}

// Get returns a live session. Sessions idle longer than the TTL or whose
// bearer token has expired are dropped.
func (st *SessionStore) Get(id string) (*UserSession, bool) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, false
	}

	now := st.now()
	if st.expired(sess, now) {
		st.Delete(id)
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

func (st *SessionStore) expired(sess *UserSession, now time.Time) bool {
	return now.Sub(sess.idleSince()) > st.ttl || sess.Client.Session().Expired(now)
}

func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		sess.Client.Logout()
	}
}

// Sweep drops every expired session and reports how many went.
func (st *SessionStore) Sweep() int {
	now := st.now()
	st.mu.Lock()
	var stale []string
	for id, sess := range st.sessions {
		if st.expired(sess, now) {
			stale = append(stale, id)
		}
	}
	st.mu.Unlock()

	for _, id := range stale {
		st.Delete(id)
	}
	return len(stale)
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
