package calllog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/voxline/frontdesk/pkg/errorsx"
)

// AsyncWriter hands records to a background worker so the webhook
// response never waits on the durable store. Exhausted retries are
// abandoned with a warning.
type AsyncWriter struct {
	inner   Writer
	ch      chan Record
	dropped int64
	once    sync.Once
	quit    chan struct{}
	done    chan struct{}
	logger  *slog.Logger
}

func NewAsyncWriter(inner Writer, buffer int) *AsyncWriter {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncWriter{
		inner:  inner,
		ch:     make(chan Record, buffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	go a.loop()
	return a
}

// Append never blocks. The buffer channel is never closed, so a send
// racing Close cannot panic; records handed in after Close are
// discarded.
func (a *AsyncWriter) Append(ctx context.Context, rec Record) error {
	_ = ctx
	if a == nil {
		return nil
	}
	select {
	case <-a.quit:
		return nil
	default:
	}
	select {
	case a.ch <- rec:
	default:
		atomic.AddInt64(&a.dropped, 1)
		a.logger.Warn("call_log_dropped",
			"reason_code", string(errorsx.ReasonLogWrite),
			"call_record_id", rec.ID,
		)
	}
	return nil
}

// Dropped reports how many records were discarded on a full buffer.
func (a *AsyncWriter) Dropped() int64 {
	return atomic.LoadInt64(&a.dropped)
}

// Close stops the worker after draining buffered records.
func (a *AsyncWriter) Close() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		close(a.quit)
		<-a.done
	})
}

func (a *AsyncWriter) loop() {
	defer close(a.done)
	for {
		select {
		case rec := <-a.ch:
			a.write(rec)
		case <-a.quit:
			for {
				select {
				case rec := <-a.ch:
					a.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (a *AsyncWriter) write(rec Record) {
	if err := a.inner.Append(context.Background(), rec); err != nil {
		a.logger.Warn("call_log_write_failed",
			"reason_code", string(errorsx.ReasonLogWrite),
			"call_record_id", rec.ID,
			"client_id", rec.ClientID,
			"error", err.Error(),
		)
	}
}
