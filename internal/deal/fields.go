package deal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/dealsync/internal/cache"
	"github.com/hyperengineering/dealsync/internal/journal"
	"github.com/hyperengineering/dealsync/internal/types"
)

// readOnlyFields lists computed and denormalized columns that must
// never be accepted as direct mutation input. Disallowed fields are
// silently stripped before submission; this leniency is deliberate,
// not a reported error.
var readOnlyFields = map[string]struct{}{
	"id":               {},
	"stage_name":       {},
	"assigned_to_name": {},
	"listing_title":    {},
	"listing_price":    {},
	"buyer_name":       {},
	"buyer_email":      {},
	"contact_name":     {},
	"contact_email":    {},
	"task_count":       {},
	"activity_count":   {},
	"has_data_room":    {},
	"memo_distributed": {},
	"different_owner":  {},
	"created_at":       {},
	"updated_at":       {},
	"stage_entered_at": {},
	"is_deleted":       {},
	"deleted_at":       {},
}

// referenceFields lists relational reference columns whose sentinel
// values normalize to null.
var referenceFields = map[string]struct{}{
	"assigned_to": {},
	"listing_id":  {},
	"buyer_id":    {},
}

// sentinelValues are the string placeholders UI layers send for "no
// reference".
var sentinelValues = map[string]struct{}{
	"unassigned": {},
	"":           {},
	"undefined":  {},
}

// UpdateFields applies a partial field update to a deal. Read-only
// columns are stripped, sentinel reference values normalize to null,
// and only the accepted fields are optimistically merged into the
// cache before the remote call. An update reduced to ownership alone
// is rerouted through the dedicated atomic ownership operation.
func (c *Coordinator) UpdateFields(ctx context.Context, dealID string, fields map[string]any, actorID string) (*types.DealView, error) {
	view, ok := c.lookup(dealID)
	if !ok {
		return nil, fmt.Errorf("update deal %s: %w", dealID, ErrDealNotFound)
	}

	accepted := sanitizeFields(dealID, fields)
	if len(accepted) == 0 {
		return &view, nil
	}

	// Ownership-only updates take the atomic path so the authority can
	// apply owner and related bookkeeping in one step.
	if len(accepted) == 1 {
		if raw, ok := accepted["assigned_to"]; ok {
			commit, err := c.ChangeOwner(ctx, ChangeOwnerParams{
				DealID:     dealID,
				NewOwnerID: refValue(raw),
				ActorID:    actorID,
			})
			if err != nil {
				return nil, err
			}
			return &commit.Deal, nil
		}
	}

	c.deals.CancelRefetch(cache.Deals)
	snap := c.deals.Snapshot(cache.Deals)

	now := c.now().UTC()
	c.patch(dealID, func(v *types.DealView) {
		applyFields(v, accepted)
		v.UpdatedAt = now
	})

	row, err := c.authority.UpdateFields(ctx, types.UpdateFieldsRequest{
		DealID: dealID,
		Fields: accepted,
	})
	if err != nil {
		c.deals.Restore(snap)
		c.record(ctx, journal.Entry{
			DealID:    dealID,
			Operation: "update_fields",
			ActorID:   actorID,
			Outcome:   journal.OutcomeRolledBack,
			Detail:    detailJSON(map[string]string{"error": err.Error()}),
		})
		c.scheduleReconcile(ctx, cache.Deals)
		return nil, fmt.Errorf("update deal %s: %w", dealID, err)
	}

	updated, _ := c.patch(dealID, func(v *types.DealView) {
		mergeRow(v, *row)
	})

	c.record(ctx, journal.Entry{
		DealID:    dealID,
		Operation: "update_fields",
		ActorID:   actorID,
		Outcome:   journal.OutcomeCommitted,
		Detail:    detailJSON(accepted),
	})

	c.scheduleReconcile(ctx, cache.Deals)
	return &updated, nil
}

// sanitizeFields strips read-only columns and normalizes sentinel
// reference values to nil.
func sanitizeFields(dealID string, fields map[string]any) map[string]any {
	accepted := make(map[string]any, len(fields))
	for key, value := range fields {
		if _, readOnly := readOnlyFields[key]; readOnly {
			slog.Debug("dropping read-only field from update",
				"component", "coordinator",
				"deal_id", dealID,
				"field", key,
			)
			continue
		}
		if _, isRef := referenceFields[key]; isRef {
			if s, ok := value.(string); ok {
				if _, sentinel := sentinelValues[s]; sentinel {
					accepted[key] = nil
					continue
				}
			}
		}
		accepted[key] = value
	}
	return accepted
}

// refValue converts a sanitized reference field value to *string.
func refValue(raw any) *string {
	if raw == nil {
		return nil
	}
	if s, ok := raw.(string); ok {
		return &s
	}
	return nil
}

// applyFields merges accepted mutable fields into the cached view.
// Fields the view does not model locally are left for the authority's
// confirmed row to settle.
func applyFields(v *types.DealView, fields map[string]any) {
	for key, value := range fields {
		switch key {
		case "title":
			if s, ok := value.(string); ok {
				v.Title = s
			}
		case "priority":
			if s, ok := value.(string); ok {
				v.Priority = s
			}
		case "value":
			if f, ok := asFloat(value); ok {
				v.Value = f
			}
		case "probability":
			if f, ok := asFloat(value); ok {
				v.Probability = f
			}
		case "stage_id":
			if s, ok := value.(string); ok {
				v.StageID = s
			}
		case "assigned_to":
			v.AssignedTo = refValue(value)
		case "listing_id":
			v.ListingID = refValue(value)
		case "buyer_id":
			v.BuyerID = refValue(value)
		}
	}
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// mergeRow folds the authority's confirmed row into the cached view,
// preserving existence flags the row does not carry.
func mergeRow(v *types.DealView, row types.DealRow) {
	v.Deal = types.Deal{
		ID:             row.ID,
		StageID:        row.StageID,
		AssignedTo:     row.AssignedTo,
		Title:          row.Title,
		Value:          row.Value,
		Priority:       row.Priority,
		Probability:    row.Probability,
		IsDeleted:      row.IsDeleted,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
		StageEnteredAt: row.StageEnteredAt,
		DeletedAt:      row.DeletedAt,
	}
	v.StageName = row.StageName
	v.AssignedToName = row.AssignedToName
	v.ListingID = row.ListingID
	v.ListingTitle = row.ListingTitle
	v.ListingPrice = row.ListingPrice
	v.BuyerID = row.BuyerID
	v.BuyerName = row.BuyerName
	v.BuyerEmail = row.BuyerEmail
	v.ContactName = row.ContactName
	v.ContactEmail = row.ContactEmail
	v.TaskCount = row.TaskCount
	v.ActivityCount = row.ActivityCount
}
