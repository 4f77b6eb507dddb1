package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/helmsman-ai/helmsman/internal/permission"
	"github.com/helmsman-ai/helmsman/internal/registry"
)

// maxFetchBytes caps a fetched body before registry-level truncation
// applies. Keeps a pathological response from being buffered whole.
const maxFetchBytes = 256 * 1024

// NewWebFetchDefinition fetches a URL over HTTP(S).
func NewWebFetchDefinition() *registry.Definition {
	client := &http.Client{Timeout: 30 * time.Second}
	return &registry.Definition{
		Name:        "web_fetch",
		Description: "Fetch the contents of a URL over HTTP or HTTPS.",
		Group:       GroupWeb,
		Level:       permission.Network,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to fetch",
				},
			},
			"required": []string{"url"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			url := strings.TrimSpace(GetString(args, "url", ""))
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				return "", fmt.Errorf("unsupported URL scheme: %s", url)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return "", fmt.Errorf("build request: %w", err)
			}
			req.Header.Set("User-Agent", "helmsman/1.0")

			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("fetch %s: %w", url, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return "", fmt.Errorf("fetch %s: status %s", url, resp.Status)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
			if err != nil {
				return "", fmt.Errorf("read body: %w", err)
			}
			return string(body), nil
		},
	}
}
