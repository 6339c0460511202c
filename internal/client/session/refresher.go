package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nagare-io/authgate/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultInterval  = time.Minute
	defaultThreshold = 5 * time.Minute
)

// Refresher proactively renews the access token before it expires. It is a
// timer, not a retry loop: a failed refresh clears the session and the next
// tick simply finds nothing to do.
type Refresher struct {
	manager   *Manager
	interval  time.Duration
	threshold time.Duration
	inFlight  atomic.Bool
	now       func() time.Time
}

// NewRefresher creates a refresher for m. Zero durations fall back to the
// defaults: a 60-second check interval and a 5-minute expiry threshold.
func NewRefresher(m *Manager, interval, threshold time.Duration) *Refresher {
	if interval <= 0 {
		interval = defaultInterval
	}
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Refresher{
		manager:   m,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick fires at most one refresh. Ticks landing while a refresh is in flight
// are skipped, not queued, so two completions can never tear the TokenSet.
func (r *Refresher) tick(ctx context.Context) {
	tokens := r.manager.Tokens()
	if tokens.RefreshToken == "" {
		return
	}

	until := tokens.ExpiresAt.Sub(r.now())
	if until <= 0 || until >= r.threshold {
		return
	}

	if !r.inFlight.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer r.inFlight.Store(false)
		if err := r.manager.Refresh(ctx); err != nil {
			logger.Warn("Proactive token refresh failed, session cleared", zap.Error(err))
		}
	}()
}
