package types

import "time"

// Wire records for the remote authority boundary. Each remote
// operation gets an explicit request/response pair validated at the
// edge instead of duck-typed maps trusted throughout.

// DealRow is one pre-joined, denormalized row from the authority's
// batched deal listing. The server-side join avoids a client-side
// N+1 fan-out across stage, listing, and buyer tables.
type DealRow struct {
	ID             string     `json:"id"`
	StageID        string     `json:"stage_id"`
	StageName      string     `json:"stage_name"`
	AssignedTo     *string    `json:"assigned_to"`
	AssignedToName string     `json:"assigned_to_name"`
	Title          string     `json:"title"`
	Value          float64    `json:"value"`
	Priority       string     `json:"priority"`
	Probability    float64    `json:"probability"`
	IsDeleted      bool       `json:"is_deleted"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StageEnteredAt time.Time  `json:"stage_entered_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`

	ListingID    *string `json:"listing_id"`
	ListingTitle string  `json:"listing_title"`
	ListingPrice float64 `json:"listing_price"`

	BuyerID    *string `json:"buyer_id"`
	BuyerName  string  `json:"buyer_name"`
	BuyerEmail string  `json:"buyer_email"`

	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`

	TaskCount     int `json:"task_count"`
	ActivityCount int `json:"activity_count"`
}

// StageRow is one stage row from the authority, ordered by position.
type StageRow struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Position int       `json:"position"`
	Type     StageType `json:"type"`
	IsActive bool      `json:"is_active"`
}

// MoveStageRequest asks the authority to move a deal to a new stage.
// The authority applies ownership side effects (auto-claim of an
// unassigned deal) in the same step.
type MoveStageRequest struct {
	DealID     string `json:"deal_id"`
	NewStageID string `json:"new_stage_id"`
	ActorID    string `json:"actor_id"`
}

// MoveStageResult is the authority's confirmation of a stage move.
type MoveStageResult struct {
	StageName             string  `json:"stage_name"`
	OldStageName          string  `json:"old_stage_name"`
	NewStageName          string  `json:"new_stage_name"`
	OwnerAssigned         bool    `json:"owner_assigned"`
	DifferentOwnerWarning bool    `json:"different_owner_warning"`
	PreviousOwnerID       *string `json:"previous_owner_id,omitempty"`
	PreviousOwnerName     string  `json:"previous_owner_name,omitempty"`
}

// UpdateOwnerRequest asks the authority to reassign a deal through the
// dedicated atomic ownership operation. OwnerID nil clears ownership.
type UpdateOwnerRequest struct {
	DealID  string  `json:"deal_id"`
	OwnerID *string `json:"owner_id"`
	ActorID string  `json:"actor_id"`
}

// UpdateOwnerResult is the authority's confirmation of an ownership change.
type UpdateOwnerResult struct {
	OwnerChanged      bool    `json:"owner_changed"`
	PreviousOwnerID   *string `json:"previous_owner_id,omitempty"`
	PreviousOwnerName string  `json:"previous_owner_name,omitempty"`
	StageName         string  `json:"stage_name"`
}

// UpdateFieldsRequest carries a partial field set for a generic deal
// update. Read-only columns are stripped client-side before
// submission; the authority rejects any that slip through.
type UpdateFieldsRequest struct {
	DealID string         `json:"deal_id"`
	Fields map[string]any `json:"fields"`
}

// SoftDeleteRequest marks a deal inactive without destroying history.
type SoftDeleteRequest struct {
	DealID string `json:"deal_id"`
	Reason string `json:"reason,omitempty"`
}

// QueryInRequest is one chunked existence lookup against a related
// table. Chunks are capped at the authority's query-size limit.
type QueryInRequest struct {
	Table   string   `json:"table"`
	DealIDs []string `json:"deal_ids"`
}

// QueryInResult maps each queried deal id to whether a matching row
// exists in the requested table.
type QueryInResult struct {
	Exists map[string]bool `json:"exists"`
}
