package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrDrainTimeout is returned when in-flight work did not finish
// within the configured drain window.
var ErrDrainTimeout = errors.New("drain timeout")

// LifecycleRunner runs a Drainer until its context is cancelled, then
// gives in-flight work a bounded window to finish.
type LifecycleRunner struct {
	state    atomic.Int32
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	hooks    Hooks
	drainer  Drainer
	stopErr  error
	window   time.Duration
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, drainWindow time.Duration) *LifecycleRunner {
	if drainWindow <= 0 {
		drainWindow = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &LifecycleRunner{
		ctx:     ctx,
		cancel:  cancel,
		hooks:   hooks,
		drainer: drainer,
		window:  drainWindow,
	}
	r.state.Store(int32(StateNew))
	return r
}

// Run blocks until ctx is cancelled or Stop is called, then drains.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return errors.New("runner already started")
	}
	PrintBanner()
	if ctx != nil {
		r.ctx, r.cancel = context.WithCancel(ctx)
	}
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.state.Store(int32(StateRunning))
	<-r.ctx.Done()
	return r.drain()
}

func (r *LifecycleRunner) Stop() error {
	r.cancel()
	return r.drain()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

func (r *LifecycleRunner) drain() error {
	r.stopOnce.Do(func() {
		r.state.Store(int32(StateDraining))
		if r.drainer != nil {
			done := make(chan struct{})
			go func() {
				_ = r.drainer.Drain()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(r.window):
				r.stopErr = ErrDrainTimeout
			}
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.state.Store(int32(StateStopped))
	})
	return r.stopErr
}
