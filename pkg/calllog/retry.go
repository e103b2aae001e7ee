package calllog

import (
	"context"

	"github.com/voxline/frontdesk/pkg/resilience"
)

// RetryWriter retries failed appends a bounded number of times with
// backoff before giving up.
type RetryWriter struct {
	inner  Writer
	policy resilience.RetryPolicy
}

func NewRetryWriter(inner Writer, policy resilience.RetryPolicy) *RetryWriter {
	return &RetryWriter{inner: inner, policy: policy}
}

func (w *RetryWriter) Append(ctx context.Context, rec Record) error {
	return w.policy.Do(func() error {
		return w.inner.Append(ctx, rec)
	})
}
