// Package deal implements the mutation coordinator: optimistic patch,
// remote commit, reconcile-or-rollback for stage moves, ownership
// changes, field updates, and soft delete/restore.
package deal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/dealsync/internal/authority"
	"github.com/hyperengineering/dealsync/internal/cache"
	"github.com/hyperengineering/dealsync/internal/conflict"
	"github.com/hyperengineering/dealsync/internal/journal"
	"github.com/hyperengineering/dealsync/internal/notify"
	"github.com/hyperengineering/dealsync/internal/types"
)

// ErrDealNotFound is returned when the deal is not in the cache mirror.
var ErrDealNotFound = errors.New("deal not found in cache")

// Recorder appends settled mutations to the audit journal.
// Implemented by journal.Journal.
type Recorder interface {
	Append(ctx context.Context, entry journal.Entry) (string, error)
}

// Reconciler schedules a reconciliation refetch for a collection.
// Implemented by projection.Service.
type Reconciler interface {
	Reconcile(ctx context.Context, key cache.Key) error
}

// Coordinator orchestrates deal mutations. All dependencies are
// injected; the coordinator holds no module-level mutable state.
// Dispatcher, Recorder, and Reconciler may be nil, disabling the
// corresponding side effect.
type Coordinator struct {
	authority  authority.Client
	deals      *cache.Store[types.DealView]
	stages     *cache.Store[types.Stage]
	dispatcher notify.Dispatcher
	recorder   Recorder
	reconciler Reconciler

	milestones      map[string]struct{}
	resetOnReopen   bool
	dispatchTimeout time.Duration
	now             func() time.Time
}

// CoordinatorConfig bundles the coordinator dependencies.
type CoordinatorConfig struct {
	Authority  authority.Client
	Deals      *cache.Store[types.DealView]
	Stages     *cache.Store[types.Stage]
	Dispatcher notify.Dispatcher
	Recorder   Recorder
	Reconciler Reconciler

	// MilestoneStages lists stage names whose entry triggers a
	// notification side effect.
	MilestoneStages []string
	// ResetStageEntryOnReopen controls whether exiting a closed-type
	// stage restamps stage_entered_at.
	ResetStageEntryOnReopen bool
	// DispatchTimeout bounds the post-commit notification call.
	DispatchTimeout time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	milestones := make(map[string]struct{}, len(cfg.MilestoneStages))
	for _, name := range cfg.MilestoneStages {
		milestones[name] = struct{}{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DispatchTimeout == 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	return &Coordinator{
		authority:       cfg.Authority,
		deals:           cfg.Deals,
		stages:          cfg.Stages,
		dispatcher:      cfg.Dispatcher,
		recorder:        cfg.Recorder,
		reconciler:      cfg.Reconciler,
		milestones:      milestones,
		resetOnReopen:   cfg.ResetStageEntryOnReopen,
		dispatchTimeout: cfg.DispatchTimeout,
		now:             cfg.Now,
	}
}

// MoveStageParams are the inputs to MoveStage.
type MoveStageParams struct {
	DealID     string
	NewStageID string
	ActorID    string
	ActorName  string
	Check      conflict.OwnerCheck
}

// MoveStage moves a deal to a new stage.
//
// With StandardCheck and a deal owned by someone other than the actor,
// it aborts before any cache mutation or network call and returns a
// ConflictSignal. Otherwise it snapshots the cache, applies an
// optimistic patch, and calls the authority's stage-move operation.
// On success the confirmed result is merged into the cache and the
// notification dispatcher may fire; on failure the pre-mutation
// snapshot is restored and the remote error surfaces to the caller.
func (c *Coordinator) MoveStage(ctx context.Context, p MoveStageParams) (*MoveStageResult, error) {
	view, ok := c.lookup(p.DealID)
	if !ok {
		return nil, fmt.Errorf("move stage %s: %w", p.DealID, ErrDealNotFound)
	}

	decision := conflict.Check(view.AssignedTo, view.AssignedToName, p.ActorID, p.Check)
	if !decision.Allowed {
		slog.Info("stage move blocked by ownership pre-check",
			"component", "coordinator",
			"deal_id", p.DealID,
			"actor_id", p.ActorID,
			"owner_id", decision.Owner.OwnerID,
		)
		c.record(ctx, journal.Entry{
			DealID:    p.DealID,
			Operation: "move_stage",
			ActorID:   p.ActorID,
			Outcome:   journal.OutcomeConflict,
			Detail:    detailJSON(map[string]string{"requested_stage_id": p.NewStageID, "owner_id": decision.Owner.OwnerID}),
		})
		return &MoveStageResult{Conflict: &ConflictSignal{
			DealID:           p.DealID,
			DealTitle:        view.Title,
			OwnerID:          decision.Owner.OwnerID,
			OwnerName:        decision.Owner.OwnerName,
			RequestedStageID: p.NewStageID,
		}}, nil
	}

	// A stale background refetch must not overwrite the optimistic value.
	c.deals.CancelRefetch(cache.Deals)
	snap := c.deals.Snapshot(cache.Deals)

	now := c.now().UTC()
	oldStageName := view.StageName
	oldStageClosed := c.stageClosed(view.StageID)
	stampEntry := c.resetOnReopen || !oldStageClosed

	c.patch(p.DealID, func(v *types.DealView) {
		v.StageID = p.NewStageID
		if stampEntry {
			v.StageEnteredAt = now
		}
		v.UpdatedAt = now
		if name, ok := c.stageName(p.NewStageID); ok {
			v.StageName = name // best-effort; authority confirms below
		}
	})

	result, err := c.authority.MoveStage(ctx, types.MoveStageRequest{
		DealID:     p.DealID,
		NewStageID: p.NewStageID,
		ActorID:    p.ActorID,
	})
	if err != nil {
		c.deals.Restore(snap)
		c.record(ctx, journal.Entry{
			DealID:    p.DealID,
			Operation: "move_stage",
			ActorID:   p.ActorID,
			Outcome:   journal.OutcomeRolledBack,
			Detail:    detailJSON(map[string]string{"requested_stage_id": p.NewStageID, "error": err.Error()}),
		})
		c.scheduleReconcile(ctx, cache.Deals)
		return nil, fmt.Errorf("move stage %s: %w", p.DealID, err)
	}

	var transfer *types.OwnershipTransfer
	if result.OwnerAssigned || (result.PreviousOwnerID != nil && *result.PreviousOwnerID != p.ActorID) {
		transfer = &types.OwnershipTransfer{
			DealID:     p.DealID,
			NewOwnerID: p.ActorID,
			ActorID:    p.ActorID,
			OccurredAt: now,
		}
		if result.PreviousOwnerID != nil {
			transfer.PreviousOwnerID = *result.PreviousOwnerID
			transfer.PreviousOwnerName = result.PreviousOwnerName
		}
	}

	updated, _ := c.patch(p.DealID, func(v *types.DealView) {
		v.StageName = result.StageName
		if result.OwnerAssigned {
			owner := p.ActorID
			v.AssignedTo = &owner
			v.AssignedToName = p.ActorName
		}
		v.DifferentOwner = result.DifferentOwnerWarning
	})

	commit := &StageMoveCommit{
		Deal:          updated,
		OldStageName:  result.OldStageName,
		NewStageName:  result.NewStageName,
		OwnerAssigned: result.OwnerAssigned,
		Transfer:      transfer,
	}
	if commit.OldStageName == "" {
		commit.OldStageName = oldStageName
	}

	c.record(ctx, journal.Entry{
		DealID:    p.DealID,
		Operation: "move_stage",
		ActorID:   p.ActorID,
		Outcome:   journal.OutcomeCommitted,
		Detail:    detailJSON(map[string]string{"old_stage": commit.OldStageName, "new_stage": commit.NewStageName}),
	})

	// Post-commit side effect: the mutation is already confirmed, so
	// dispatch failure surfaces only as a secondary warning.
	ownerChangedAway := result.PreviousOwnerID != nil && *result.PreviousOwnerID != p.ActorID
	if ownerChangedAway || c.isMilestone(result.NewStageName) {
		commit.Notification = c.dispatch(ctx, notify.Event{
			DealID:            p.DealID,
			DealTitle:         updated.Title,
			PreviousOwnerID:   transferPreviousID(transfer),
			PreviousOwnerName: transferPreviousName(transfer),
			ActorID:           p.ActorID,
			ActorName:         p.ActorName,
			OldStageName:      commit.OldStageName,
			NewStageName:      commit.NewStageName,
			ListingContext:    updated.ListingTitle,
		})
	}

	c.scheduleReconcile(ctx, cache.Deals)
	return &MoveStageResult{Committed: commit}, nil
}

// lookup returns the cached view of a deal.
func (c *Coordinator) lookup(dealID string) (types.DealView, bool) {
	items, ok := c.deals.Get(cache.Deals)
	if !ok {
		return types.DealView{}, false
	}
	for _, item := range items {
		if item.ID == dealID {
			return item, true
		}
	}
	return types.DealView{}, false
}

// patch applies fn to the cached deal and writes the collection back.
func (c *Coordinator) patch(dealID string, fn func(*types.DealView)) (types.DealView, bool) {
	items, ok := c.deals.Get(cache.Deals)
	if !ok {
		return types.DealView{}, false
	}
	for i := range items {
		if items[i].ID == dealID {
			fn(&items[i])
			c.deals.Set(cache.Deals, items)
			return items[i], true
		}
	}
	return types.DealView{}, false
}

// stageName resolves a stage id against the local stage list.
func (c *Coordinator) stageName(stageID string) (string, bool) {
	stages, ok := c.stages.Get(cache.Stages)
	if !ok {
		return "", false
	}
	for _, s := range stages {
		if s.ID == stageID {
			return s.Name, true
		}
	}
	return "", false
}

// stageClosed reports whether the stage carries the closed type tag.
func (c *Coordinator) stageClosed(stageID string) bool {
	stages, ok := c.stages.Get(cache.Stages)
	if !ok {
		return false
	}
	for _, s := range stages {
		if s.ID == stageID {
			return s.Closed()
		}
	}
	return false
}

func (c *Coordinator) isMilestone(stageName string) bool {
	_, ok := c.milestones[stageName]
	return ok
}

// dispatch fires the post-commit notification. Failures never reach
// the primary mutation result; they come back as a warning outcome.
func (c *Coordinator) dispatch(ctx context.Context, event notify.Event) *NotificationOutcome {
	if c.dispatcher == nil {
		return nil
	}

	dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.dispatchTimeout)
	defer cancel()

	out := &NotificationOutcome{Attempted: true}
	receipt, err := c.dispatcher.Dispatch(dispatchCtx, event)
	if err != nil {
		slog.Warn("notification dispatch failed",
			"component", "coordinator",
			"deal_id", event.DealID,
			"error", err,
		)
		out.Warning = fmt.Sprintf("stage updated, but notification failed: %v; notify manually", err)
		return out
	}
	if receipt.Duplicate {
		slog.Info("notification suppressed as duplicate",
			"component", "coordinator",
			"deal_id", event.DealID,
			"event_id", event.EventID,
		)
		out.Duplicate = true
	}
	return out
}

// record appends to the mutation journal, best-effort.
func (c *Coordinator) record(ctx context.Context, entry journal.Entry) {
	if c.recorder == nil {
		return
	}
	if _, err := c.recorder.Append(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("journal append failed",
			"component", "coordinator",
			"deal_id", entry.DealID,
			"operation", entry.Operation,
			"error", err,
		)
	}
}

// scheduleReconcile converges the cache with the authority after a
// mutation settles. Abandoning the initiating flow does not cancel the
// refetch; it completes in the background regardless of UI lifetime.
func (c *Coordinator) scheduleReconcile(ctx context.Context, key cache.Key) {
	if c.reconciler == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := c.reconciler.Reconcile(bg, key); err != nil {
			slog.Warn("reconciliation refetch failed",
				"component", "coordinator",
				"collection", string(key),
				"error", err,
			)
		}
	}()
}

func detailJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func transferPreviousID(t *types.OwnershipTransfer) string {
	if t == nil {
		return ""
	}
	return t.PreviousOwnerID
}

func transferPreviousName(t *types.OwnershipTransfer) string {
	if t == nil {
		return ""
	}
	return t.PreviousOwnerName
}
