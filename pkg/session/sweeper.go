package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredFunc receives the final snapshot of a reclaimed session.
type ExpiredFunc func(CallSession)

// Sweeper reclaims sessions with no activity for the idle window. The
// telephony provider does not signal abandoned calls in the webhook
// model, so without the sweep an abandoned call would pin its session
// forever.
type Sweeper struct {
	store     *Store
	idleAfter time.Duration
	interval  time.Duration
	onExpired ExpiredFunc
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewSweeper(store *Store, idleAfter, interval time.Duration, onExpired ExpiredFunc) *Sweeper {
	if idleAfter <= 0 {
		idleAfter = 10 * time.Minute
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		store:     store,
		idleAfter: idleAfter,
		interval:  interval,
		onExpired: onExpired,
		logger:    slog.Default(),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

func (s *Sweeper) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.done != nil {
			<-s.done
		}
	})
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep reclaims every session idle since before now-idleAfter and
// reports the number removed.
func (s *Sweeper) Sweep(now time.Time) int {
	cutoff := now.Add(-s.idleAfter)
	removed := 0
	for _, id := range s.store.IDs() {
		snap, ok := s.store.DeleteIfIdle(id, cutoff)
		if !ok {
			continue
		}
		removed++
		s.logger.Warn("session_expired",
			"call_id", snap.CallID,
			"client_id", snap.ClientID,
			"turns", snap.TurnCount(),
			"idle", now.Sub(snap.LastActivity).String(),
		)
		if s.onExpired != nil {
			s.onExpired(snap)
		}
	}
	return removed
}
