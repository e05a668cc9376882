package types

import (
	"time"
)

// StageType classifies a pipeline stage as active or closed.
// "closed" is a type tag, not a terminal lock: a deal in a closed
// stage can be moved back into an active one.
type StageType string

const (
	StageTypeActive StageType = "active"
	StageTypeClosed StageType = "closed"
)

// Stage is a named pipeline position. Position controls display order
// only and places no constraint on which transitions are legal.
type Stage struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Position int       `json:"position"`
	Type     StageType `json:"type"`
	IsActive bool      `json:"is_active"`
}

// Closed reports whether the stage carries the closed type tag.
func (s Stage) Closed() bool {
	return s.Type == StageTypeClosed
}

// Deal is the mutable pipeline record. AssignedTo is nil for an
// unassigned deal; unassigned is a valid, stable state.
type Deal struct {
	ID             string     `json:"id"`
	StageID        string     `json:"stage_id"`
	AssignedTo     *string    `json:"assigned_to,omitempty"`
	Title          string     `json:"title"`
	Value          float64    `json:"value"`
	Priority       string     `json:"priority"`
	Probability    float64    `json:"probability"`
	IsDeleted      bool       `json:"is_deleted"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StageEnteredAt time.Time  `json:"stage_entered_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Owned reports whether the deal currently has an owner.
func (d Deal) Owned() bool {
	return d.AssignedTo != nil && *d.AssignedTo != ""
}

// DealView is the read-side projection of a Deal: the mutable record
// plus denormalized listing/buyer/contact columns and existence flags
// supplied by the projection layer. The denormalized fields are never
// writable through the mutation path.
type DealView struct {
	Deal

	StageName string `json:"stage_name"`

	// AssignedToName is the denormalized display name of the current
	// owner, used by the conflict confirmation flow.
	AssignedToName string `json:"assigned_to_name,omitempty"`

	ListingID    *string `json:"listing_id,omitempty"`
	ListingTitle string  `json:"listing_title,omitempty"`
	ListingPrice float64 `json:"listing_price,omitempty"`

	BuyerID    *string `json:"buyer_id,omitempty"`
	BuyerName  string  `json:"buyer_name,omitempty"`
	BuyerEmail string  `json:"buyer_email,omitempty"`

	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`

	TaskCount     int `json:"task_count"`
	ActivityCount int `json:"activity_count"`

	HasDataRoom     bool `json:"has_data_room"`
	MemoDistributed bool `json:"memo_distributed"`

	// DifferentOwner is a transient UI flag set when the last confirmed
	// mutation reported the deal belongs to someone other than the actor.
	// It is excluded from rollback comparisons.
	DifferentOwner bool `json:"different_owner,omitempty"`
}

// OwnershipTransfer records a confirmed change of ownership. It is
// ephemeral: produced by a mutation for notification and journaling,
// never persisted by the remote authority as its own entity.
type OwnershipTransfer struct {
	DealID            string    `json:"deal_id"`
	PreviousOwnerID   string    `json:"previous_owner_id,omitempty"`
	PreviousOwnerName string    `json:"previous_owner_name,omitempty"`
	NewOwnerID        string    `json:"new_owner_id,omitempty"`
	ActorID           string    `json:"actor_id"`
	OccurredAt        time.Time `json:"occurred_at"`
}
