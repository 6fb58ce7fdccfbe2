package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/tgarchive/viewer/internal/model"
)

// Session is an active viewer login, held only in memory (spec.md §3:
// "Session (in-memory only)"). Token is a 256-bit random URL-safe string,
// never a predictable ID.
type Session struct {
	Token          string
	Username       string
	Role           model.Role
	AllowedChatIDs *[]int64 // nil means unrestricted, as resolved at login time
	CreatedAt      time.Time
	LastAccessed   time.Time
}

func newToken() (string, error) {
	buf := make([]byte, 32) // 256 bits
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SessionStore is the process-wide, in-memory session table. It holds a
// handful of long-lived singleton registries (spec.md §9) rather than
// relying on ambient/global scope: callers are handed an explicit
// *SessionStore built once at startup.
type SessionStore struct {
	mu         sync.RWMutex
	byToken    map[string]*Session
	byUsername map[string][]*Session // ordered oldest-first
	ttl        time.Duration
	maxPerUser int
}

// NewSessionStore builds an empty store with the given TTL and
// per-username session quota (spec.md §3: AUTH_SESSION_SECONDS,
// MAX_SESSIONS_PER_USER).
func NewSessionStore(ttl time.Duration, maxPerUser int) *SessionStore {
	return &SessionStore{
		byToken:    make(map[string]*Session),
		byUsername: make(map[string][]*Session),
		ttl:        ttl,
		maxPerUser: maxPerUser,
	}
}

// Create mints a new session for username/role/scope, evicting the
// oldest session for that username if the quota is already at capacity
// (spec.md §3, property 6 in spec.md §8).
func (s *SessionStore) Create(username string, role model.Role, allowed *[]int64) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &Session{
		Token:          token,
		Username:       username,
		Role:           role,
		AllowedChatIDs: allowed,
		CreatedAt:      now,
		LastAccessed:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byToken[token] = sess
	list := append(s.byUsername[username], sess)

	for len(list) > s.maxPerUser {
		oldest := list[0]
		delete(s.byToken, oldest.Token)
		list = list[1:]
	}
	s.byUsername[username] = list

	return sess, nil
}

// Validate looks up token, rejecting it if absent or past its TTL, and
// bumps LastAccessed on success (spec.md §4.2, property 5 in §8).
func (s *SessionStore) Validate(token string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	if !ok {
		return nil, false
	}
	if time.Since(sess.CreatedAt) >= s.ttl {
		s.deleteLocked(sess)
		return nil, false
	}
	sess.LastAccessed = time.Now().UTC()
	return sess, true
}

// Delete removes a single session by token (logout).
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byToken[token]; ok {
		s.deleteLocked(sess)
	}
}

// DeleteUser invalidates every session belonging to username — used by
// admin account update/delete (spec.md §4.9).
func (s *SessionStore) DeleteUser(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUsername[username]
	for _, sess := range list {
		delete(s.byToken, sess.Token)
	}
	delete(s.byUsername, username)
	return len(list)
}

// deleteLocked removes sess from both indexes. Caller must hold s.mu.
func (s *SessionStore) deleteLocked(sess *Session) {
	delete(s.byToken, sess.Token)
	list := s.byUsername[sess.Username]
	for i, cand := range list {
		if cand == sess {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.byUsername, sess.Username)
	} else {
		s.byUsername[sess.Username] = list
	}
}

// SweepExpired removes every session past its TTL. Intended to be called
// from a background ticker every 900s (spec.md §4.2).
func (s *SessionStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.byToken {
		if time.Since(sess.CreatedAt) >= s.ttl {
			delete(s.byToken, token)
			list := s.byUsername[sess.Username]
			for i, cand := range list {
				if cand == sess {
					list = append(list[:i], list[i+1:]...)
					break
				}
			}
			if len(list) == 0 {
				delete(s.byUsername, sess.Username)
			} else {
				s.byUsername[sess.Username] = list
			}
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions for username (test/ops use).
func (s *SessionStore) Count(username string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUsername[username])
}
