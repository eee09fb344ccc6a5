package capability

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// Web searches the internet and extracts readable text from pages.
type Web struct {
	search    *duckduckgo.Tool
	userAgent string
}

func NewWeb() (*Web, error) {
	ddg, err := duckduckgo.New(10, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &Web{
		search:    ddg,
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	}, nil
}

func (w *Web) Register(r *Registry) error {
	funcs := map[string]Func{
		"search": {
			Description: "Search the web using DuckDuckGo for real-time information.",
			Parameters: objSchema(map[string]any{
				"query": strProp("The search query to look up"),
			}, []string{"query"}),
			Run: w.runSearch,
		},
		"scrape": {
			Description: "Fetch a webpage and extract the main content as clean text.",
			Parameters: objSchema(map[string]any{
				"url": strProp("The full URL of the page, e.g. https://example.com/article"),
			}, []string{"url"}),
			Run: w.scrape,
		},
	}
	for name, fn := range funcs {
		if err := r.Register("web", name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (w *Web) runSearch(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}
	res, err := w.search.Call(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return map[string]any{"text": res}, nil
}

func (w *Web) scrape(ctx context.Context, args map[string]any) (map[string]any, error) {
	rawURL, err := requireString(args, "url")
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse article: %w", err)
	}

	// Strip any tags readability left behind.
	sanitized := bluemonday.StrictPolicy().Sanitize(article.TextContent)
	if len(sanitized) > 50000 {
		sanitized = sanitized[:50000] + "\n... (content truncated) ..."
	}

	output := fmt.Sprintf("TITLE: %s\n", article.Title)
	if article.Excerpt != "" {
		output += fmt.Sprintf("EXCERPT: %s\n", article.Excerpt)
	}
	output += "\n-- CONTENT --\n" + sanitized

	return map[string]any{"text": output, "title": article.Title}, nil
}
