package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIConnector makes HTTP calls to arbitrary JSON APIs on the planner's
// behalf.
type APIConnector struct {
	client *http.Client
}

func NewAPIConnector() *APIConnector {
	return &APIConnector{client: &http.Client{Timeout: 30 * time.Second}}
}

func (a *APIConnector) Register(r *Registry) error {
	funcs := map[string]Func{
		"call_api": {
			Description: "Call an HTTP API and return the response body.",
			Parameters: objSchema(map[string]any{
				"url":    strProp("The endpoint URL"),
				"method": strProp("HTTP method, default GET"),
				"body":   strProp("Request body for POST/PUT/PATCH"),
			}, []string{"url"}),
			Run: a.callAPI,
		},
		"call_api_with_auth": {
			Description: "Call an HTTP API with a bearer token and return the response body.",
			Parameters: objSchema(map[string]any{
				"url":    strProp("The endpoint URL"),
				"method": strProp("HTTP method, default GET"),
				"body":   strProp("Request body for POST/PUT/PATCH"),
				"token":  strProp("Bearer token for the Authorization header"),
			}, []string{"url", "token"}),
			Run: a.callAPIWithAuth,
		},
	}
	for name, fn := range funcs {
		if err := r.Register("api_connector", name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (a *APIConnector) callAPI(ctx context.Context, args map[string]any) (map[string]any, error) {
	return a.call(ctx, args, "")
}

func (a *APIConnector) callAPIWithAuth(ctx context.Context, args map[string]any) (map[string]any, error) {
	token, err := requireString(args, "token")
	if err != nil {
		return nil, err
	}
	return a.call(ctx, args, token)
}

func (a *APIConnector) call(ctx context.Context, args map[string]any, token string) (map[string]any, error) {
	rawURL, err := requireString(args, "url")
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(argString(args, "method"))
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body := argString(args, "body"); body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	text := strings.TrimSpace(string(data))
	// Pretty-print JSON bodies so the planner gets readable output.
	var pretty json.RawMessage
	if json.Unmarshal(data, &pretty) == nil {
		if formatted, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			text = string(formatted)
		}
	}
	if len(text) > 20000 {
		text = text[:20000] + "\n... (truncated)"
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, text)
	}
	return map[string]any{"text": text, "status": resp.StatusCode}, nil
}
