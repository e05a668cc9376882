// Package conflict implements the ownership pre-check consulted before
// a stage move. The check is pure and deterministic: no I/O, no clock.
package conflict

// OwnerCheck declares how a mutation treats the ownership pre-check.
type OwnerCheck int

const (
	// StandardCheck blocks stage moves on deals owned by someone else.
	StandardCheck OwnerCheck = iota
	// AdminOverride skips the ownership pre-check entirely.
	AdminOverride
)

// String returns the check mode name for logging.
func (m OwnerCheck) String() string {
	switch m {
	case AdminOverride:
		return "admin_override"
	default:
		return "standard"
	}
}

// OwnerInfo identifies the current owner of a blocked deal for
// display in the confirmation flow.
type OwnerInfo struct {
	OwnerID   string
	OwnerName string
}

// Decision is the outcome of the ownership pre-check.
type Decision struct {
	Allowed bool
	Owner   OwnerInfo // populated only when blocked
}

// Check decides whether actorID may mutate a deal currently owned by
// currentOwnerID. Allowed when the mode is AdminOverride, when the
// deal is unowned (the move auto-claims it), or when the actor is the
// owner. Blocked otherwise, carrying the owner identity for display.
func Check(currentOwnerID *string, ownerName string, actorID string, mode OwnerCheck) Decision {
	if mode == AdminOverride {
		return Decision{Allowed: true}
	}
	if currentOwnerID == nil || *currentOwnerID == "" {
		return Decision{Allowed: true}
	}
	if *currentOwnerID == actorID {
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed: false,
		Owner: OwnerInfo{
			OwnerID:   *currentOwnerID,
			OwnerName: ownerName,
		},
	}
}
