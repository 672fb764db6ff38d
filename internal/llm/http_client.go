package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider wire formats.
const (
	FormatOpenAI    = "openai"
	FormatAnthropic = "anthropic"
)

const (
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 2048
)

// Config describes one reasoning endpoint.
type Config struct {
	Provider    string        // openai or anthropic wire format
	BaseURL     string        // endpoint root, e.g. https://api.openai.com/v1
	Model       string
	APIKey      string        // literal key; APIKeyEnv wins when set
	APIKeyEnv   string        // environment variable holding the key
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// HTTPClient implements Client over plain HTTP for OpenAI-compatible and
// Anthropic message APIs. Every request is bounded by the configured
// timeout so a stalled provider cannot hang a pipeline.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

// NewHTTPClient validates the config and constructs a client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("llm base url is required")
	}
	switch cfg.Provider {
	case FormatOpenAI, FormatAnthropic:
	case "":
		cfg.Provider = FormatOpenAI
	default:
		return nil, fmt.Errorf("unknown llm provider format %q", cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Complete implements Client.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, fmt.Errorf("llm request has no messages")
	}

	body, path, err := c.buildRequest(req)
	if err != nil {
		return Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create llm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := c.setAuthHeaders(httpReq); err != nil {
		return Response{}, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Response{}, fmt.Errorf("llm provider returned HTTP %d", resp.StatusCode)
	}

	return c.parseResponse(raw)
}

func (c *HTTPClient) buildRequest(req Request) ([]byte, string, error) {
	temperature := c.cfg.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := c.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	switch c.cfg.Provider {
	case FormatAnthropic:
		// Anthropic keeps system text out of the messages array.
		var system []string
		var messages []Message
		for _, m := range req.Messages {
			if m.Role == RoleSystem {
				system = append(system, m.Content)
				continue
			}
			messages = append(messages, m)
		}
		payload := map[string]any{
			"model":       c.cfg.Model,
			"max_tokens":  maxTokens,
			"temperature": temperature,
			"messages":    messages,
		}
		if len(system) > 0 {
			payload["system"] = strings.Join(system, "\n")
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, "", fmt.Errorf("marshal llm request: %w", err)
		}
		return body, "/messages", nil
	default:
		payload := map[string]any{
			"model":       c.cfg.Model,
			"max_tokens":  maxTokens,
			"temperature": temperature,
			"messages":    req.Messages,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, "", fmt.Errorf("marshal llm request: %w", err)
		}
		return body, "/chat/completions", nil
	}
}

func (c *HTTPClient) setAuthHeaders(req *http.Request) error {
	key := strings.TrimSpace(c.cfg.APIKey)
	if env := strings.TrimSpace(c.cfg.APIKeyEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			key = v
		}
	}
	if key == "" {
		return fmt.Errorf("llm api key is missing")
	}
	if c.cfg.Provider == FormatAnthropic {
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", "2023-06-01")
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+key)
	return nil
}

type openAIResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *HTTPClient) parseResponse(raw []byte) (Response, error) {
	if c.cfg.Provider == FormatAnthropic {
		var parsed anthropicResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return Response{}, fmt.Errorf("parse llm response: %w", err)
		}
		var b strings.Builder
		for _, block := range parsed.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		content := strings.TrimSpace(b.String())
		if content == "" {
			return Response{}, fmt.Errorf("llm response contained no text")
		}
		return Response{
			Content: content,
			Usage: Usage{
				PromptTokens:     parsed.Usage.InputTokens,
				CompletionTokens: parsed.Usage.OutputTokens,
			},
		}, nil
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("parse llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("llm response contained no choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return Response{}, fmt.Errorf("llm response contained no text")
	}
	return Response{
		Content: content,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}
