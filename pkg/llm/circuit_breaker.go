package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxline/frontdesk/pkg/resilience"
)

// CircuitBreakerAdapter wraps an Adapter with rate-limit circuit breaking.
// While the breaker is open every Complete call fails fast, so repeated
// quota errors degrade into the caller-facing apology path instead of
// stacking up timed-out provider requests.
type CircuitBreakerAdapter struct {
	inner   Adapter
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	open    bool
	mu      sync.Mutex
}

func NewCircuitBreakerAdapter(inner Adapter, breaker *resilience.CircuitBreaker) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerAdapter{inner: inner, breaker: breaker, logger: slog.Default()}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

func (a *CircuitBreakerAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	if !a.breaker.Allow() {
		a.setOpen(true)
		return Response{}, resilience.RateLimitError{Provider: a.Name(), Message: "degraded"}
	}
	a.setOpen(false)
	resp, err := a.inner.Complete(ctx, req)
	if err != nil {
		a.breaker.OnError(err)
		return Response{}, err
	}
	a.breaker.OnSuccess()
	return resp, nil
}

func (a *CircuitBreakerAdapter) setOpen(open bool) {
	a.mu.Lock()
	changed := a.open != open
	a.open = open
	a.mu.Unlock()
	if !changed {
		return
	}
	if open {
		a.logger.Warn("completion_breaker_open", "provider", a.inner.Name())
		return
	}
	a.logger.Info("completion_breaker_close", "provider", a.inner.Name())
}
