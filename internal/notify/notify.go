// Package notify is the best-effort side channel for informing a
// previous owner or stakeholder of a confirmed change. Dispatch runs
// only after a mutation has committed and never gates or reverses it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is the payload handed to the notification channel.
type Event struct {
	EventID           string `json:"event_id"`
	DealID            string `json:"deal_id"`
	DealTitle         string `json:"deal_title"`
	PreviousOwnerID   string `json:"previous_owner_id,omitempty"`
	PreviousOwnerName string `json:"previous_owner_name,omitempty"`
	ActorID           string `json:"actor_id"`
	ActorName         string `json:"actor_name,omitempty"`
	OldStageName      string `json:"old_stage_name,omitempty"`
	NewStageName      string `json:"new_stage_name,omitempty"`
	ListingContext    string `json:"listing_context,omitempty"`
}

// Receipt reports the outcome of a dispatch. Duplicate means the
// channel suppressed an equivalent recent event for the same deal and
// milestone; it is informational, not a failure.
type Receipt struct {
	Duplicate bool `json:"duplicate"`
}

// Dispatcher sends events to the notification channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) (*Receipt, error)
}

// Compile-time interface check
var _ Dispatcher = (*HTTPDispatcher)(nil)

// HTTPDispatcher posts events to the remote notification service.
type HTTPDispatcher struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPDispatcher creates a dispatcher for the service at url.
func NewHTTPDispatcher(url, apiKey string, timeout time.Duration) *HTTPDispatcher {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDispatcher{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type dispatchResponse struct {
	Success   bool   `json:"success"`
	Duplicate bool   `json:"duplicate"`
	Error     string `json:"error,omitempty"`
}

// Dispatch sends one event. Events without an id get a fresh ULID so
// the channel can key duplicate suppression.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, event Event) (*Receipt, error) {
	if event.EventID == "" {
		event.EventID = ulid.Make().String()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode notification event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notification dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("notification dispatch: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var body dispatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode notification response: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("notification dispatch: %s", body.Error)
	}

	return &Receipt{Duplicate: body.Duplicate}, nil
}
