// Package projection builds the read-side denormalized deal view from
// the remote authority plus small batched supplementary lookups, and
// keeps the cache mirror converged after mutations settle.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hyperengineering/dealsync/internal/authority"
	"github.com/hyperengineering/dealsync/internal/cache"
	"github.com/hyperengineering/dealsync/internal/types"
)

// Tables consulted for per-deal existence flags.
const (
	tableDataRooms    = "data_rooms"
	tableMemoDistribs = "memo_distributions"
)

// Service is the query/projection layer.
type Service struct {
	authority authority.Client
	deals     *cache.Store[types.DealView]
	stages    *cache.Store[types.Stage]
	chunkSize int
	staleness time.Duration
}

// New creates a Service. chunkSize caps ids per existence lookup and
// must respect the authority's limit of 100; zero selects the default.
func New(client authority.Client, deals *cache.Store[types.DealView], stages *cache.Store[types.Stage], chunkSize int, staleness time.Duration) *Service {
	if chunkSize <= 0 || chunkSize > 100 {
		chunkSize = 100
	}
	return &Service{
		authority: client,
		deals:     deals,
		stages:    stages,
		chunkSize: chunkSize,
		staleness: staleness,
	}
}

// FetchAllDeals issues one batched, server-side-joined deal query and
// merges chunked existence flags into each projection. The result
// replaces the cached deal collection.
func (s *Service) FetchAllDeals(ctx context.Context) ([]types.DealView, error) {
	rows, err := s.authority.FetchAllDeals(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch deals: %w", err)
	}

	views := make([]types.DealView, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		views = append(views, viewFromRow(row))
		ids = append(ids, row.ID)
	}

	dataRooms, err := s.existenceFlags(ctx, tableDataRooms, ids)
	if err != nil {
		return nil, err
	}
	memos, err := s.existenceFlags(ctx, tableMemoDistribs, ids)
	if err != nil {
		return nil, err
	}

	for i := range views {
		views[i].HasDataRoom = dataRooms[views[i].ID]
		views[i].MemoDistributed = memos[views[i].ID]
	}

	if ctx.Err() != nil {
		// A newer writer cancelled this refetch; its result is stale.
		return views, ctx.Err()
	}

	s.deals.Set(cache.Deals, views)
	s.deals.MarkFresh(cache.Deals, s.staleness)
	return views, nil
}

// FetchStages returns stages ordered by position. With includeClosed
// false only active-type stages are returned. The result replaces the
// cached stage collection.
func (s *Service) FetchStages(ctx context.Context, includeClosed bool) ([]types.Stage, error) {
	rows, err := s.authority.FetchStages(ctx, includeClosed)
	if err != nil {
		return nil, fmt.Errorf("fetch stages: %w", err)
	}

	stages := make([]types.Stage, 0, len(rows))
	for _, row := range rows {
		if !includeClosed && row.Type == types.StageTypeClosed {
			continue
		}
		stages = append(stages, types.Stage{
			ID:       row.ID,
			Name:     row.Name,
			Color:    row.Color,
			Position: row.Position,
			Type:     row.Type,
			IsActive: row.IsActive,
		})
	}
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Position < stages[j].Position })

	if ctx.Err() != nil {
		return stages, ctx.Err()
	}

	s.stages.Set(cache.Stages, stages)
	s.stages.MarkFresh(cache.Stages, s.staleness)
	return stages, nil
}

// Reconcile refetches the deal collection to converge the cache with
// the remote authority. Calls inside the staleness window coalesce to
// a no-op. The refetch registers with the cache so a later optimistic
// patch can cancel it before it lands.
func (s *Service) Reconcile(ctx context.Context, key cache.Key) error {
	switch key {
	case cache.Deals:
		if !s.deals.NeedsReconcile(key) {
			return nil
		}
		refetchCtx, cancel := s.deals.BeginRefetch(ctx, key)
		defer cancel()
		defer s.deals.EndRefetch(key)

		if _, err := s.FetchAllDeals(refetchCtx); err != nil {
			if refetchCtx.Err() != nil {
				slog.Debug("reconciliation refetch cancelled", "component", "projection", "collection", key)
				return nil
			}
			return err
		}
		return nil
	case cache.Stages:
		if !s.stages.NeedsReconcile(key) {
			return nil
		}
		refetchCtx, cancel := s.stages.BeginRefetch(ctx, key)
		defer cancel()
		defer s.stages.EndRefetch(key)

		if _, err := s.FetchStages(refetchCtx, true); err != nil {
			if refetchCtx.Err() != nil {
				slog.Debug("reconciliation refetch cancelled", "component", "projection", "collection", key)
				return nil
			}
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown collection %q", key)
	}
}

// existenceFlags batches ids in fixed-size chunks against one related
// table and merges the per-chunk results. ceil(N/chunkSize) remote
// calls are issued for N ids.
func (s *Service) existenceFlags(ctx context.Context, table string, ids []string) (map[string]bool, error) {
	flags := make(map[string]bool, len(ids))

	for start := 0; start < len(ids); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(ids) {
			end = len(ids)
		}

		result, err := s.authority.QueryIn(ctx, types.QueryInRequest{
			Table:   table,
			DealIDs: ids[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("existence flags for %s: %w", table, err)
		}
		for id, exists := range result.Exists {
			flags[id] = exists
		}
	}

	return flags, nil
}

// viewFromRow converts one authority row into the cached projection.
func viewFromRow(row types.DealRow) types.DealView {
	return types.DealView{
		Deal: types.Deal{
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
		},
		StageName:      row.StageName,
		AssignedToName: row.AssignedToName,
		ListingID:      row.ListingID,
		ListingTitle:   row.ListingTitle,
		ListingPrice:   row.ListingPrice,
		BuyerID:        row.BuyerID,
		BuyerName:      row.BuyerName,
		BuyerEmail:     row.BuyerEmail,
		ContactName:    row.ContactName,
		ContactEmail:   row.ContactEmail,
		TaskCount:      row.TaskCount,
		ActivityCount:  row.ActivityCount,
	}
}
