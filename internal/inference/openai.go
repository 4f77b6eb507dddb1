package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIBackend speaks the OpenAI-compatible chat completions API. It
// works against llama.cpp's built-in server, OpenRouter, OpenAI and
// other compatible endpoints.
type OpenAIBackend struct {
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
}

// NewOpenAIBackend creates a backend. An empty apiBase targets a local
// llama.cpp server.
func NewOpenAIBackend(apiKey, apiBase, model string) *OpenAIBackend {
	if apiBase == "" {
		apiBase = "http://localhost:8080/v1"
	}
	if model == "" {
		model = "local"
	}
	return &OpenAIBackend{
		apiKey:     apiKey,
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements Backend. The whole completion is emitted as one
// fragment; token-level streaming is the transport's concern, not the
// contract's.
func (b *OpenAIBackend) Complete(ctx context.Context, req *Request, emit func(string)) error {
	messages := make([]map[string]any, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	for _, turn := range req.Messages {
		messages = append(messages, map[string]any{"role": turn.Role, "content": turn.Content})
	}

	body := map[string]any{
		"model":    b.model,
		"messages": messages,
	}
	if req.Params.MaxTokens > 0 {
		body["max_tokens"] = req.Params.MaxTokens
	}
	if req.Params.Temperature > 0 {
		body["temperature"] = req.Params.Temperature
	}
	if req.Params.TopP > 0 {
		body["top_p"] = req.Params.TopP
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &BackendError{Reason: "request failed: " + err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return &BackendError{Reason: "read response: " + err.Error(), Retryable: true}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Parsed below.
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &BackendError{
			Reason:    fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			Retryable: true,
		}
	default:
		return &BackendError{
			Reason:    fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			Retryable: false,
		}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return &BackendError{Reason: "parse response: " + err.Error(), Retryable: false}
	}
	if parsed.Error != nil {
		return &BackendError{Reason: parsed.Error.Message, Retryable: false}
	}
	if len(parsed.Choices) == 0 {
		return &BackendError{Reason: "empty choices in response", Retryable: false}
	}

	emit(parsed.Choices[0].Message.Content)
	return nil
}
