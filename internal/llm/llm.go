// Package llm defines the reasoning interface consumed by planning,
// generation and memory summarization, plus an HTTP implementation for
// OpenAI-compatible and Anthropic-style completion APIs.
package llm

import "context"

// Message is one role-tagged text message in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is a single completion request. Temperature and MaxTokens
// override the client defaults when non-zero.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage counts tokens consumed by a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the provider's reply. No structure beyond plain text is
// assumed; callers recover any structure themselves.
type Response struct {
	Content string
	Usage   Usage
}

// Client is the external reasoning capability.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
