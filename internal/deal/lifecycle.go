package deal

import (
	"context"
	"fmt"

	"github.com/hyperengineering/dealsync/internal/cache"
	"github.com/hyperengineering/dealsync/internal/journal"
	"github.com/hyperengineering/dealsync/internal/types"
)

// SoftDelete marks a deal inactive in the remote authority without
// destroying history. The cached entry is optimistically removed from
// the collection, matching its exclusion from default listings, and
// restored if the remote call fails.
func (c *Coordinator) SoftDelete(ctx context.Context, dealID, reason, actorID string) error {
	if _, ok := c.lookup(dealID); !ok {
		return fmt.Errorf("soft delete %s: %w", dealID, ErrDealNotFound)
	}

	c.deals.CancelRefetch(cache.Deals)
	snap := c.deals.Snapshot(cache.Deals)

	items, _ := c.deals.Get(cache.Deals)
	remaining := make([]types.DealView, 0, len(items))
	for _, item := range items {
		if item.ID != dealID {
			remaining = append(remaining, item)
		}
	}
	c.deals.Set(cache.Deals, remaining)

	err := c.authority.SoftDelete(ctx, types.SoftDeleteRequest{DealID: dealID, Reason: reason})
	if err != nil {
		c.deals.Restore(snap)
		c.record(ctx, journal.Entry{
			DealID:    dealID,
			Operation: "soft_delete",
			ActorID:   actorID,
			Outcome:   journal.OutcomeRolledBack,
			Detail:    detailJSON(map[string]string{"error": err.Error()}),
		})
		c.scheduleReconcile(ctx, cache.Deals)
		return fmt.Errorf("soft delete %s: %w", dealID, err)
	}

	c.record(ctx, journal.Entry{
		DealID:    dealID,
		Operation: "soft_delete",
		ActorID:   actorID,
		Outcome:   journal.OutcomeCommitted,
		Detail:    detailJSON(map[string]string{"reason": reason}),
	})

	c.scheduleReconcile(ctx, cache.Deals)
	return nil
}

// Restore reverses a soft delete. The restored row is not in the
// cached collection, so convergence comes from the reconciliation
// refetch rather than an optimistic patch.
func (c *Coordinator) Restore(ctx context.Context, dealID, actorID string) error {
	c.deals.CancelRefetch(cache.Deals)

	if err := c.authority.Restore(ctx, dealID); err != nil {
		c.record(ctx, journal.Entry{
			DealID:    dealID,
			Operation: "restore",
			ActorID:   actorID,
			Outcome:   journal.OutcomeRolledBack,
			Detail:    detailJSON(map[string]string{"error": err.Error()}),
		})
		return fmt.Errorf("restore %s: %w", dealID, err)
	}

	c.record(ctx, journal.Entry{
		DealID:    dealID,
		Operation: "restore",
		ActorID:   actorID,
		Outcome:   journal.OutcomeCommitted,
	})

	c.scheduleReconcile(ctx, cache.Deals)
	return nil
}
