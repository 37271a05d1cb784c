package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

// defaultSessionTTL bounds how long an OAuth redirect may take. Kept well
// under the one-hour ceiling the platforms apply to authorization codes.
const defaultSessionTTL = 15 * time.Minute

// SessionStore holds pending OAuth sessions (state + optional PKCE
// verifier) between the connect redirect and the platform callback.
// Sessions are single-use and evicted after their TTL.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[types.OAuthState]*model.OAuthSession
	ttl      time.Duration
	now      func() time.Time
}

// Option configures a SessionStore
type Option func(*SessionStore)

// WithTTL overrides the session TTL
func WithTTL(ttl time.Duration) Option {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// WithClock overrides the time source for tests
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		s.now = now
	}
}

// NewSessionStore creates a SessionStore
func NewSessionStore(opts ...Option) *SessionStore {
	s := &SessionStore{
		sessions: make(map[types.OAuthState]*model.OAuthSession),
		ttl:      defaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a session for a tenant connecting a platform. PKCE
// platforms get a code verifier alongside the state.
func (s *SessionStore) Issue(tenantID types.TenantID, platform types.Platform) (*model.OAuthSession, error) {
	state, err := randomToken(16)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate OAuth state")
	}

	session := &model.OAuthSession{
		State:    types.OAuthState(state),
		TenantID: tenantID,
		Platform: platform,
		IssuedAt: s.now(),
	}

	if platform.UsesPKCE() {
		verifier, err := randomToken(32)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to generate PKCE verifier")
		}
		session.CodeVerifier = verifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()
	s.sessions[session.State] = session
	return session, nil
}

// Consume validates and removes the session for a callback state. Unknown,
// reused and expired states all fail the same way so a forged redirect
// learns nothing.
func (s *SessionStore) Consume(state types.OAuthState) (*model.OAuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[state]
	if !ok {
		return nil, goerr.Wrap(types.ErrRequest, "unknown or expired OAuth state")
	}
	delete(s.sessions, state)

	if session.Expired(s.ttl, s.now()) {
		return nil, goerr.Wrap(types.ErrRequest, "unknown or expired OAuth state")
	}
	return session, nil
}

// Size returns the number of pending sessions
func (s *SessionStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) evictExpiredLocked() {
	now := s.now()
	for state, session := range s.sessions {
		if session.Expired(s.ttl, now) {
			delete(s.sessions, state)
		}
	}
}

// CodeChallenge derives the S256 PKCE challenge for a verifier
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
