package llm

import "context"

// Message is one prior utterance handed to the completion engine.
// Role is "user" for the caller and "assistant" for the receptionist.
type Message struct {
	Role    string
	Content string
}

// Request carries the frozen system instruction plus the full turn history.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Adapter is implemented by completion-engine providers.
type Adapter interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}
