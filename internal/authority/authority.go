// Package authority is the typed boundary to the remote system of
// record for deals and stages. Every remote operation has an explicit
// request/response record validated at this edge.
package authority

import (
	"context"
	"fmt"

	"github.com/hyperengineering/dealsync/internal/types"
)

// Client defines the remote authority operations consumed by the
// mutation coordinator and the projection layer.
type Client interface {
	// FetchAllDeals returns pre-joined denormalized deal rows in one
	// batched call.
	FetchAllDeals(ctx context.Context) ([]types.DealRow, error)

	// FetchStages returns stages ordered by position, optionally
	// including closed-type stages.
	FetchStages(ctx context.Context, includeClosed bool) ([]types.StageRow, error)

	// MoveStage moves a deal to a new stage and applies ownership side
	// effects (auto-claim) in the same authoritative step.
	MoveStage(ctx context.Context, req types.MoveStageRequest) (*types.MoveStageResult, error)

	// UpdateOwner reassigns a deal through the dedicated atomic
	// ownership operation, avoiding partial writes of denormalized
	// read-only columns.
	UpdateOwner(ctx context.Context, req types.UpdateOwnerRequest) (*types.UpdateOwnerResult, error)

	// UpdateFields applies a partial field update. The authority
	// rejects or ignores read-only columns.
	UpdateFields(ctx context.Context, req types.UpdateFieldsRequest) (*types.DealRow, error)

	// SoftDelete marks a deal inactive without destroying history.
	SoftDelete(ctx context.Context, req types.SoftDeleteRequest) error

	// Restore reverses a soft delete.
	Restore(ctx context.Context, dealID string) error

	// QueryIn runs one chunked existence lookup (chunk ≤ 100 ids)
	// against a related table.
	QueryIn(ctx context.Context, req types.QueryInRequest) (*types.QueryInResult, error)
}

// RemoteError is a failure returned by the remote authority. The
// coordinator rolls the cache back to its pre-mutation snapshot and
// surfaces the underlying reason to the caller.
type RemoteError struct {
	Op     string // remote operation name
	Status int    // HTTP status, 0 for transport failures
	Reason string // underlying failure text
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authority %s failed (status %d): %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("authority %s failed: %s", e.Op, e.Reason)
}
