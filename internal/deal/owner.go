package deal

import (
	"context"
	"fmt"

	"github.com/hyperengineering/dealsync/internal/cache"
	"github.com/hyperengineering/dealsync/internal/journal"
	"github.com/hyperengineering/dealsync/internal/notify"
	"github.com/hyperengineering/dealsync/internal/types"
)

// ChangeOwnerParams are the inputs to ChangeOwner. NewOwnerID nil
// clears ownership, leaving the deal unassigned.
type ChangeOwnerParams struct {
	DealID       string
	NewOwnerID   *string
	NewOwnerName string
	ActorID      string
	ActorName    string
}

// ChangeOwner reassigns a deal through the authority's dedicated
// ownership operation, which applies owner and related bookkeeping in
// one atomic step instead of a generic partial update. The cache is
// optimistically updated before the call and reconciled or rolled back
// the same way as MoveStage. When the authority confirms the owner
// actually changed and a previous owner existed, a notification is
// dispatched to the previous owner.
func (c *Coordinator) ChangeOwner(ctx context.Context, p ChangeOwnerParams) (*OwnerChangeCommit, error) {
	if _, ok := c.lookup(p.DealID); !ok {
		return nil, fmt.Errorf("change owner %s: %w", p.DealID, ErrDealNotFound)
	}

	c.deals.CancelRefetch(cache.Deals)
	snap := c.deals.Snapshot(cache.Deals)

	now := c.now().UTC()
	c.patch(p.DealID, func(v *types.DealView) {
		v.AssignedTo = p.NewOwnerID
		v.AssignedToName = p.NewOwnerName
		v.UpdatedAt = now
	})

	result, err := c.authority.UpdateOwner(ctx, types.UpdateOwnerRequest{
		DealID:  p.DealID,
		OwnerID: p.NewOwnerID,
		ActorID: p.ActorID,
	})
	if err != nil {
		c.deals.Restore(snap)
		c.record(ctx, journal.Entry{
			DealID:    p.DealID,
			Operation: "change_owner",
			ActorID:   p.ActorID,
			Outcome:   journal.OutcomeRolledBack,
			Detail:    detailJSON(map[string]string{"error": err.Error()}),
		})
		c.scheduleReconcile(ctx, cache.Deals)
		return nil, fmt.Errorf("change owner %s: %w", p.DealID, err)
	}

	updated, _ := c.patch(p.DealID, func(v *types.DealView) {
		v.StageName = result.StageName
	})

	commit := &OwnerChangeCommit{
		Deal:         updated,
		OwnerChanged: result.OwnerChanged,
	}

	if result.OwnerChanged {
		transfer := &types.OwnershipTransfer{
			DealID:     p.DealID,
			ActorID:    p.ActorID,
			OccurredAt: now,
		}
		if p.NewOwnerID != nil {
			transfer.NewOwnerID = *p.NewOwnerID
		}
		if result.PreviousOwnerID != nil {
			transfer.PreviousOwnerID = *result.PreviousOwnerID
			transfer.PreviousOwnerName = result.PreviousOwnerName
		}
		commit.Transfer = transfer

		if result.PreviousOwnerID != nil {
			commit.Notification = c.dispatch(ctx, notify.Event{
				DealID:            p.DealID,
				DealTitle:         updated.Title,
				PreviousOwnerID:   *result.PreviousOwnerID,
				PreviousOwnerName: result.PreviousOwnerName,
				ActorID:           p.ActorID,
				ActorName:         p.ActorName,
				ListingContext:    updated.ListingTitle,
			})
		}
	}

	c.record(ctx, journal.Entry{
		DealID:    p.DealID,
		Operation: "change_owner",
		ActorID:   p.ActorID,
		Outcome:   journal.OutcomeCommitted,
		Detail:    detailJSON(commit.Transfer),
	})

	c.scheduleReconcile(ctx, cache.Deals)
	return commit, nil
}
