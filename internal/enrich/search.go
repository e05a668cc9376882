package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OrganicResult is one organic hit from a web search.
type OrganicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SearchResult is the response to one query.
type SearchResult struct {
	Query   string
	Organic []OrganicResult
}

// Searcher runs one web search query.
type Searcher interface {
	Search(ctx context.Context, query string) (*SearchResult, error)
}

// Compile-time interface check
var _ Searcher = (*SerperClient)(nil)

// SerperClient queries the Serper Google Search API.
type SerperClient struct {
	apiKey string
	url    string
	client *http.Client
}

// NewSerperClient creates a search client with the given API key.
func NewSerperClient(apiKey string) *SerperClient {
	return &SerperClient{
		apiKey: apiKey,
		url:    "https://google.serper.dev/search",
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type serperRequest struct {
	Q           string `json:"q"`
	GL          string `json:"gl"`
	Autocorrect bool   `json:"autocorrect"`
	Num         int    `json:"num"`
}

type serperResponse struct {
	SearchParameters struct {
		Q string `json:"q"`
	} `json:"searchParameters"`
	Organic []OrganicResult `json:"organic"`
}

// Search runs one query, returning up to ten organic results.
func (c *SerperClient) Search(ctx context.Context, query string) (*SearchResult, error) {
	payload, err := json.Marshal(serperRequest{Q: query, GL: "us", Autocorrect: false, Num: 10})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %q: status %d", query, resp.StatusCode)
	}

	var body serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &SearchResult{Query: body.SearchParameters.Q, Organic: body.Organic}
	if result.Query == "" {
		result.Query = query
	}
	return result, nil
}
