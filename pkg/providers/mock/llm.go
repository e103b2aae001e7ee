package mock

import (
	"context"
	"sync"

	"github.com/voxline/frontdesk/pkg/llm"
)

// LLMAdapter is a deterministic completion engine for tests and dry runs.
// Responses are served in order; the last one repeats once the script is
// exhausted. Err, when set, is returned on every call.
type LLMAdapter struct {
	cfg   LLMConfig
	mu    sync.Mutex
	calls int
	seen  []llm.Request
}

type LLMConfig struct {
	Responses []string
	Err       error
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if len(cfg.Responses) == 0 {
		cfg.Responses = []string{"mock response"}
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, req)
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	idx := a.calls
	if idx >= len(a.cfg.Responses) {
		idx = len(a.cfg.Responses) - 1
	}
	a.calls++
	return llm.Response{Text: a.cfg.Responses[idx]}, nil
}

// Calls reports how many times Complete ran.
func (a *LLMAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// LastRequest returns the most recent request, if any.
func (a *LLMAdapter) LastRequest() (llm.Request, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.seen) == 0 {
		return llm.Request{}, false
	}
	return a.seen[len(a.seen)-1], true
}
