// Package turn produces the receptionist's next utterance for a call
// session. The completion engine is an opaque collaborator behind
// llm.Adapter; this package only manages the turn history around it.
package turn

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/voxline/frontdesk/pkg/errorsx"
	"github.com/voxline/frontdesk/pkg/llm"
	"github.com/voxline/frontdesk/pkg/logging"
	"github.com/voxline/frontdesk/pkg/resilience"
	"github.com/voxline/frontdesk/pkg/session"
)

// DefaultSystemInstruction is the frozen receptionist persona. It is
// value-frozen at process start and never derived from caller input.
const DefaultSystemInstruction = "You are a friendly phone receptionist answering on behalf of a " +
	"small business. Keep replies short and natural, at most two sentences, suitable for being " +
	"read aloud. Help callers schedule appointments or take a message. When a request needs a " +
	"person, say you will transfer the call."

type Config struct {
	System    string
	MaxTokens int
	Timeout   time.Duration
	// Attempts bounds completion tries per turn. The session lock is
	// held for the whole turn, so this stays small.
	Attempts int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.System) == "" {
		c.System = DefaultSystemInstruction
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 150
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Attempts <= 0 {
		c.Attempts = 1
	}
	return c
}

// Engine turns a caller utterance into the next receptionist utterance.
type Engine struct {
	adapter llm.Adapter
	cfg     Config
	logger  *slog.Logger
}

func NewEngine(adapter llm.Adapter, cfg Config) *Engine {
	return &Engine{
		adapter: adapter,
		cfg:     cfg.withDefaults(),
		logger:  logging.NewComponentLogger(slog.Default(), "turn_engine"),
	}
}

// ProduceNextUtterance appends the caller's utterance (when non-empty),
// asks the completion engine for a bounded-length reply over the full
// history, and appends the reply on success. On failure the caller's
// turn is kept, nothing else is mutated, and the returned error carries
// a completion reason code. Call under the session store's per-key
// lock.
func (e *Engine) ProduceNextUtterance(ctx context.Context, sess *session.CallSession, callerText string) (string, error) {
	if text := strings.TrimSpace(callerText); text != "" {
		sess.AppendTurn(session.SpeakerCaller, text)
	}

	req := llm.Request{
		System:    e.cfg.System,
		Messages:  historyMessages(sess),
		MaxTokens: e.cfg.MaxTokens,
	}
	cctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := llm.Retry(cctx, llm.RetryConfig{
		MaxAttempts: e.cfg.Attempts,
		IsRetryable: func(err error) bool { return !resilience.IsRateLimit(err) },
	}, func(ctx context.Context) (llm.Response, error) {
		return e.adapter.Complete(ctx, req)
	})
	if err != nil {
		reason := errorsx.ReasonCompletionFailed
		if resilience.IsRateLimit(err) {
			reason = errorsx.ReasonCompletionRateLimit
		}
		e.logger.Warn("completion_failed",
			"call_id", sess.CallID,
			"provider", e.adapter.Name(),
			"reason_code", string(reason),
			"error", err.Error(),
		)
		return "", errorsx.Wrap(err, reason)
	}
	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return "", errorsx.Wrap(errors.New("empty completion"), errorsx.ReasonCompletionFailed)
	}

	sess.AppendTurn(session.SpeakerReceptionist, reply)
	e.logger.Debug("utterance_produced",
		"call_id", sess.CallID,
		"turns", sess.TurnCount(),
		"latency_ms", time.Since(start).Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return reply, nil
}

func historyMessages(sess *session.CallSession) []llm.Message {
	out := make([]llm.Message, 0, len(sess.Turns))
	for _, t := range sess.Turns {
		role := "user"
		if t.Speaker == session.SpeakerReceptionist {
			role = "assistant"
		}
		out = append(out, llm.Message{Role: role, Content: t.Text})
	}
	return out
}
