package session

import (
	gosync "sync"

	"github.com/nhle/tempmail/internal/model"
)

// Credential is the authenticated identity of the active session.
type Credential struct {
	AccountID string
	Address   string
	Token     string
	Password  string
	Origin    model.Origin
}

// TokenStore holds the current credential. It is the single source of
// truth for whether the engine is authenticated. Only the Manager writes
// it; everything else reads.
type TokenStore struct {
	mu   gosync.RWMutex
	cred Credential
}

// Current returns the credential and whether one is installed.
func (s *TokenStore) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.cred.Token != ""
}

// AccountID returns the installed account id, or "".
func (s *TokenStore) AccountID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.AccountID
}

// Authenticated reports whether a token is installed.
func (s *TokenStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Token != ""
}

func (s *TokenStore) set(c Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = c
}

func (s *TokenStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = Credential{}
}
