package web

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

const sessionCookieName = "todo_session"

type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// session holds the public profile and access token of a logged-in browser.
type session struct {
	user      sessionUser
	token     string
	expiresAt time.Time
}

// authenticated is the page gate: profile and token present. The token is
// not verified here; the API rejects it if it has expired.
func (s *session) authenticated() bool {
	return s != nil && s.user.ID != "" && s.token != ""
}

// sessionStore is a thread-safe in-memory session store.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// create stores a new session and returns its ID.
func (s *sessionStore) create(user sessionUser, token string) (string, error) {
	id, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	s.mu.Lock()
	s.sessions[id] = &session{
		user:      user,
		token:     token,
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()
	return id, nil
}

// get returns a session by ID, or nil if missing or expired.
func (s *sessionStore) get(id string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if s.now().After(sess.expiresAt) {
		s.delete(id)
		return nil
	}
	return sess
}

func (s *sessionStore) delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// sweep drops expired sessions and returns how many were removed.
func (s *sessionStore) sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// signID returns "<id>.<mac>" so a tampered cookie is rejected before any
// store lookup.
func signID(secret []byte, id string) string {
	return id + "." + mac(secret, id)
}

func verifyID(secret []byte, value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(mac(secret, id))) {
		return "", false
	}
	return id, true
}

func mac(secret []byte, id string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// randomHex generates a cryptographically random hex string of n bytes.
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
