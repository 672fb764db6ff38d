package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const httpToolTimeout = 30 * time.Second

// HTTPRequestTool performs a bounded HTTP GET or POST, for health checks and
// webhook-style calls from plans.
type HTTPRequestTool struct {
	client *http.Client
}

// NewHTTPRequestTool constructs the HTTP tool with its own bounded client.
func NewHTTPRequestTool() *HTTPRequestTool {
	return &HTTPRequestTool{client: &http.Client{Timeout: httpToolTimeout}}
}

func (t *HTTPRequestTool) Name() string { return "http_request" }

func (t *HTTPRequestTool) Description() string {
	return "Perform an HTTP request. Args: url (string), method (GET or POST, optional), body (string, optional)."
}

func (t *HTTPRequestTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	url, err := StringArg(args, "url")
	if err != nil {
		return "", err
	}
	method := http.MethodGet
	if v, ok := args["method"].(string); ok && v != "" {
		method = strings.ToUpper(v)
	}
	if method != http.MethodGet && method != http.MethodPost {
		return "", fmt.Errorf("unsupported method %q", method)
	}
	var body io.Reader
	if v, ok := args["body"].(string); ok && v != "" {
		body = strings.NewReader(v)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return fmt.Sprintf("HTTP %d\n%s", resp.StatusCode, strings.TrimSpace(string(data))), nil
}
