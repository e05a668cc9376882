package deal

import (
	"github.com/hyperengineering/dealsync/internal/types"
)

// ConflictSignal is a pre-mutation abort: a non-owning actor attempted
// a stage move without an explicit override. It carries enough context
// to render a confirmation dialog and is routed to the confirmation
// flow, never to generic failure handling. No cache mutation or remote
// call happens before the signal is raised.
type ConflictSignal struct {
	DealID           string `json:"deal_id"`
	DealTitle        string `json:"deal_title"`
	OwnerID          string `json:"owner_id"`
	OwnerName        string `json:"owner_name"`
	RequestedStageID string `json:"requested_stage_id"`
}

// NotificationOutcome reports the post-commit side effect. Warning is
// set when dispatch failed: the mutation itself stays committed and
// the caller surfaces a distinct lower-severity message.
type NotificationOutcome struct {
	Attempted bool   `json:"attempted"`
	Duplicate bool   `json:"duplicate"`
	Warning   string `json:"warning,omitempty"`
}

// StageMoveCommit is the confirmed outcome of a stage move.
type StageMoveCommit struct {
	Deal          types.DealView            `json:"deal"`
	OldStageName  string                    `json:"old_stage_name"`
	NewStageName  string                    `json:"new_stage_name"`
	OwnerAssigned bool                      `json:"owner_assigned"`
	Transfer      *types.OwnershipTransfer  `json:"transfer,omitempty"`
	Notification  *NotificationOutcome      `json:"notification,omitempty"`
}

// MoveStageResult is the tagged outcome of MoveStage: exactly one of
// Conflict or Committed is set. Remote failures are returned as errors
// alongside a nil result.
type MoveStageResult struct {
	Conflict  *ConflictSignal  `json:"conflict,omitempty"`
	Committed *StageMoveCommit `json:"committed,omitempty"`
}

// OwnerChangeCommit is the confirmed outcome of an ownership change.
type OwnerChangeCommit struct {
	Deal         types.DealView           `json:"deal"`
	OwnerChanged bool                     `json:"owner_changed"`
	Transfer     *types.OwnershipTransfer `json:"transfer,omitempty"`
	Notification *NotificationOutcome     `json:"notification,omitempty"`
}
