// Package pending tracks in-flight login attempts between the authorization
// redirect and the provider callback.
package pending

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nagare-io/authgate/internal/auth/constants"
	"github.com/nagare-io/authgate/internal/logger"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a state token is unknown, already consumed or
// expired. Callers must treat all three the same and fail closed.
var ErrNotFound = errors.New("pending authorization not found")

// Authorization ties a one-time state token to the PKCE verifier of a login
// attempt.
type Authorization struct {
	Verifier  string
	CreatedAt time.Time
}

// Store maps state tokens to in-flight authorizations. TakeAndRemove is the
// only read path and is destructive: a state token satisfies at most one
// callback. Implementations other than the in-process map (e.g. a shared
// external store for multi-instance deployments) must keep the same contract.
type Store interface {
	Put(state, verifier string)
	TakeAndRemove(state string) (string, error)
	SweepExpired()
}

// MemoryStore is the single-process Store. All mutation paths are serialized
// under one mutex so a state token can never be consumed twice or swept while
// a callback is consuming it. A restart drops all in-flight logins.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Authorization
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store with the standard 10-minute TTL.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Authorization),
		ttl:     constants.PendingTTL,
		now:     time.Now,
	}
}

// Put records a new login attempt under its state token.
func (s *MemoryStore) Put(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state] = Authorization{Verifier: verifier, CreatedAt: s.now()}
}

// TakeAndRemove consumes the authorization for state. A second call with the
// same state, or a call with an expired or unknown state, returns ErrNotFound.
func (s *MemoryStore) TakeAndRemove(state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.entries, state)

	if s.now().Sub(entry.CreatedAt) > s.ttl {
		// Expired but not yet swept. Still gone after this call.
		return "", ErrNotFound
	}
	return entry.Verifier, nil
}

// SweepExpired drops entries older than the TTL. Entries younger than the TTL
// are untouched.
func (s *MemoryStore) SweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for state, entry := range s.entries {
		if now.Sub(entry.CreatedAt) > s.ttl {
			delete(s.entries, state)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("Swept expired pending authorizations", zap.Int("removed", removed))
	}
}

// Len reports the number of in-flight authorizations.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RunSweeper sweeps on a fixed interval until ctx is cancelled. It runs on its
// own timer and never blocks request handling.
func RunSweeper(ctx context.Context, store Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.SweepExpired()
		}
	}
}
