package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hyperengineering/dealsync/internal/types"
)

// Compile-time interface check
var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to the remote authority over its JSON API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a client for the authority at baseURL.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchAllDeals returns pre-joined denormalized deal rows.
func (c *HTTPClient) FetchAllDeals(ctx context.Context) ([]types.DealRow, error) {
	var rows []types.DealRow
	if err := c.do(ctx, "fetch_all_deals", http.MethodGet, "/api/v1/deals", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchStages returns stages ordered by position.
func (c *HTTPClient) FetchStages(ctx context.Context, includeClosed bool) ([]types.StageRow, error) {
	path := "/api/v1/stages?include_closed=" + strconv.FormatBool(includeClosed)
	var rows []types.StageRow
	if err := c.do(ctx, "fetch_stages", http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// MoveStage calls the authority's stage-move-with-ownership operation.
func (c *HTTPClient) MoveStage(ctx context.Context, req types.MoveStageRequest) (*types.MoveStageResult, error) {
	path := fmt.Sprintf("/api/v1/deals/%s/stage", url.PathEscape(req.DealID))
	var result types.MoveStageResult
	if err := c.do(ctx, "move_stage", http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateOwner calls the dedicated atomic ownership operation.
func (c *HTTPClient) UpdateOwner(ctx context.Context, req types.UpdateOwnerRequest) (*types.UpdateOwnerResult, error) {
	path := fmt.Sprintf("/api/v1/deals/%s/owner", url.PathEscape(req.DealID))
	var result types.UpdateOwnerResult
	if err := c.do(ctx, "update_owner", http.MethodPut, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateFields applies a partial field update.
func (c *HTTPClient) UpdateFields(ctx context.Context, req types.UpdateFieldsRequest) (*types.DealRow, error) {
	path := fmt.Sprintf("/api/v1/deals/%s", url.PathEscape(req.DealID))
	var row types.DealRow
	if err := c.do(ctx, "update_fields", http.MethodPatch, path, req, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// SoftDelete marks a deal inactive.
func (c *HTTPClient) SoftDelete(ctx context.Context, req types.SoftDeleteRequest) error {
	path := fmt.Sprintf("/api/v1/deals/%s/delete", url.PathEscape(req.DealID))
	return c.do(ctx, "soft_delete", http.MethodPost, path, req, nil)
}

// Restore reverses a soft delete.
func (c *HTTPClient) Restore(ctx context.Context, dealID string) error {
	path := fmt.Sprintf("/api/v1/deals/%s/restore", url.PathEscape(dealID))
	return c.do(ctx, "restore", http.MethodPost, path, nil, nil)
}

// QueryIn runs one chunked existence lookup.
func (c *HTTPClient) QueryIn(ctx context.Context, req types.QueryInRequest) (*types.QueryInResult, error) {
	if len(req.DealIDs) > 100 {
		return nil, &RemoteError{Op: "query_in", Reason: fmt.Sprintf("chunk of %d ids exceeds limit of 100", len(req.DealIDs))}
	}
	var result types.QueryInResult
	if err := c.do(ctx, "query_in", http.MethodPost, "/api/v1/query-in", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do performs one JSON round-trip. Non-2xx responses and transport
// failures both surface as *RemoteError so callers see one taxonomy.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &RemoteError{Op: op, Reason: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &RemoteError{Op: op, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &RemoteError{Op: op, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteError{Op: op, Status: resp.StatusCode, Reason: string(bytes.TrimSpace(detail))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Op: op, Status: resp.StatusCode, Reason: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
