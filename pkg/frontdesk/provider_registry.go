package frontdesk

import (
	"fmt"
	"strings"
	"time"

	"github.com/voxline/frontdesk/pkg/call"
	"github.com/voxline/frontdesk/pkg/configutil"
	"github.com/voxline/frontdesk/pkg/llm"
	"github.com/voxline/frontdesk/pkg/providers/deepgram"
	"github.com/voxline/frontdesk/pkg/providers/mock"
	"github.com/voxline/frontdesk/pkg/providers/openai"
	"github.com/voxline/frontdesk/pkg/resilience"
)

type CompletionFactory func(settings map[string]any) (llm.Adapter, error)
type TranscriberFactory func(settings map[string]any) (call.Transcriber, error)

// ProviderRegistry maps provider names from config to adapter
// constructors. Built-ins are registered by default; callers can add
// their own before NewEngine.
type ProviderRegistry struct {
	completion  map[string]CompletionFactory
	transcriber map[string]TranscriberFactory
}

func NewProviderRegistry() *ProviderRegistry {
	r := &ProviderRegistry{
		completion:  make(map[string]CompletionFactory),
		transcriber: make(map[string]TranscriberFactory),
	}
	r.RegisterCompletion("openai", buildOpenAI)
	r.RegisterCompletion("mock", buildMockCompletion)
	r.RegisterTranscriber("deepgram", buildDeepgram)
	return r
}

func (r *ProviderRegistry) RegisterCompletion(name string, factory CompletionFactory) {
	r.completion[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) RegisterTranscriber(name string, factory TranscriberFactory) {
	r.transcriber[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildCompletion(provider string, settings map[string]any) (llm.Adapter, error) {
	fn := r.completion[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("completion provider not registered: %s", provider)
	}
	return fn(settings)
}

func (r *ProviderRegistry) BuildTranscriber(provider string, settings map[string]any) (call.Transcriber, error) {
	fn := r.transcriber[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("transcription provider not registered: %s", provider)
	}
	return fn(settings)
}

type openAISettings struct {
	APIKey           string `mapstructure:"api_key"`
	Model            string `mapstructure:"model"`
	BaseURL          string `mapstructure:"base_url"`
	BreakerThreshold int    `mapstructure:"breaker_threshold"`
	BreakerCooldown  int    `mapstructure:"breaker_cooldown_ms"`
}

func buildOpenAI(settings map[string]any) (llm.Adapter, error) {
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "base_url", "breaker_threshold", "breaker_cooldown_ms"},
	}); err != nil {
		return nil, fmt.Errorf("openai settings: %w", err)
	}
	var s openAISettings
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("openai settings: %w", err)
	}
	if s.Model == "" {
		s.Model = "gpt-4o-mini"
	}
	adapter := openai.NewAdapter(s.APIKey, s.Model)
	if s.BaseURL != "" {
		adapter.BaseURL = s.BaseURL
	}
	threshold := s.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	cooldown := time.Duration(s.BreakerCooldown) * time.Millisecond
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	breaker := resilience.NewCircuitBreaker(threshold, cooldown)
	return llm.NewCircuitBreakerAdapter(adapter, breaker), nil
}

type mockSettings struct {
	Responses []string `mapstructure:"responses"`
}

func buildMockCompletion(settings map[string]any) (llm.Adapter, error) {
	var s mockSettings
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("mock settings: %w", err)
	}
	if len(s.Responses) == 0 {
		s.Responses = []string{"Thanks for calling. How can I help you today?"}
	}
	return mock.NewLLMAdapter(mock.LLMConfig{Responses: s.Responses}), nil
}

type deepgramSettings struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	Language  string `mapstructure:"language"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

func buildDeepgram(settings map[string]any) (call.Transcriber, error) {
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "language", "timeout_ms"},
	}); err != nil {
		return nil, fmt.Errorf("deepgram settings: %w", err)
	}
	var s deepgramSettings
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("deepgram settings: %w", err)
	}
	return deepgram.New(deepgram.Config{
		APIKey:   s.APIKey,
		Model:    s.Model,
		Language: s.Language,
		Timeout:  time.Duration(s.TimeoutMS) * time.Millisecond,
	})
}
