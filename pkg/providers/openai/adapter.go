package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxline/frontdesk/pkg/llm"
	"github.com/voxline/frontdesk/pkg/resilience"
)

type Adapter struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewAdapter(apiKey, model string) *Adapter {
	return &Adapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://api.openai.com/v1",
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Complete(ctx context.Context, input llm.Request) (llm.Response, error) {
	body, err := a.buildRequest(input)
	if err != nil {
		return llm.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/chat/completions", body)
	if err != nil {
		return llm.Response{}, err
	}
	a.applyHeaders(req)
	resp, err := a.client().Do(req)
	if err != nil {
		return llm.Response{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		raw, _ := io.ReadAll(resp.Body)
		return llm.Response{}, resilience.RateLimitError{Provider: "openai", Message: string(raw)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errors.New(string(raw))
	}
	var payload completionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, err
	}
	return payload.toResponse()
}

func (a *Adapter) buildRequest(input llm.Request) (io.Reader, error) {
	messages := make([]map[string]any, 0, len(input.Messages)+1)
	if strings.TrimSpace(input.System) != "" {
		messages = append(messages, map[string]any{"role": "system", "content": input.System})
	}
	for _, m := range input.Messages {
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}
	payload := map[string]any{
		"model":    a.Model,
		"messages": messages,
	}
	if input.MaxTokens > 0 {
		payload["max_tokens"] = input.MaxTokens
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

type completionPayload struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p completionPayload) toResponse() (llm.Response, error) {
	if len(p.Choices) == 0 {
		return llm.Response{}, errors.New("no choices")
	}
	text := strings.TrimSpace(p.Choices[0].Message.Content)
	if text == "" {
		return llm.Response{}, errors.New("empty completion")
	}
	return llm.Response{
		Text:         text,
		FinishReason: p.Choices[0].FinishReason,
		Usage: llm.Usage{
			PromptTokens:     p.Usage.PromptTokens,
			CompletionTokens: p.Usage.CompletionTokens,
			TotalTokens:      p.Usage.TotalTokens,
		},
	}, nil
}
