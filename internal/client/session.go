package client

import "sync"

// Session exposes the signed-in learner. UserID returns "" while nobody is
// signed in.
type Session interface {
	UserID() string
}

// StaticSession is a Session fixed at construction.
type StaticSession string

// UserID implements Session.
func (s StaticSession) UserID() string { return string(s) }

// MutableSession is a Session that can sign in and out.
type MutableSession struct {
	mu     sync.RWMutex
	userID string
}

// UserID implements Session.
func (s *MutableSession) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetUserID signs userID in. An empty ID signs out.
func (s *MutableSession) SetUserID(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}
