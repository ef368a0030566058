package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pipeboard/core/internal/domain/entities"
)

// pendingTransition tracks one in-flight optimistic status change.
// confirmedStatus is the last status the remote store acknowledged; a
// rollback always lands there, even when several transitions superseded
// each other before the first confirmation arrived.
type pendingTransition struct {
	token           uint64
	confirmedStatus string
	entryID         string
	target          string
	source          entities.TransitionSource
	issuedAt        time.Time
}

// RequestStatusChange validates and executes a status change for an item.
//
// The change is applied locally first (optimistic apply plus a provisional
// activity entry), then confirmed against the remote store. On rejection
// the item is rolled back to the last confirmed status and the provisional
// entry removed. Concurrent transitions for the same item are serialized by
// a monotonic token: a confirmation that arrives for a superseded intent is
// ignored and reported as ErrTransitionStale.
func (s *BoardSession) RequestStatusChange(ctx context.Context, itemID, newStatus string, source entities.TransitionSource) error {
	token, target, entry, err := s.applyOptimistic(itemID, newStatus, source)
	if err != nil {
		return err
	}

	// Suspension point: the only place a transition can block. The session
	// lock is not held across this call. The provisional activity entry
	// travels with the status change so the store persists both atomically.
	confirmErr := s.store.UpdateItemStatus(ctx, itemID, target, &entry)
	s.invalidateItemCache(ctx)

	return s.completeTransition(itemID, token, target, confirmErr)
}

// applyOptimistic validates the transition and mutates local state under
// the session lock. It returns the transition token, the canonical target
// status, and the provisional activity entry for the store to persist.
func (s *BoardSession) applyOptimistic(itemID, newStatus string, source entities.TransitionSource) (uint64, string, entities.ActivityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.resolveColumnLocked(newStatus)
	if !ok {
		s.metrics.TransitionsRejected.Inc()
		return 0, "", entities.ActivityEntry{}, fmt.Errorf("target column %q: %w", newStatus, entities.ErrColumnNotFound)
	}

	item, ok := s.items[itemID]
	if !ok {
		s.metrics.TransitionsRejected.Inc()
		return 0, "", entities.ActivityEntry{}, fmt.Errorf("item %q: %w", itemID, entities.ErrItemNotFound)
	}

	s.nextToken++
	token := s.nextToken

	confirmedStatus := item.Status
	if prev, inflight := s.pending[itemID]; inflight {
		// Last intent wins: the superseded transition's confirmation will be
		// ignored by its stale token, and its provisional log entry goes away
		// with it. Rollbacks chain to the last *confirmed* status.
		confirmedStatus = prev.confirmedStatus
		item.RemoveActivity(prev.entryID)
		s.metrics.TransitionsSuperseded.Inc()
		s.logger.Debug("Transition superseded", "item_id", itemID, "old_target", prev.target, "new_target", col.Name)
	}

	now := time.Now()
	item.Status = col.Name
	item.UpdatedAt = now
	entryID := item.AppendActivity(
		entities.ActivityStatusChanged,
		fmt.Sprintf("Status changed to %s", col.Name),
		string(source),
		now,
	)
	entry := item.Activity[len(item.Activity)-1]

	s.pending[itemID] = &pendingTransition{
		token:           token,
		confirmedStatus: confirmedStatus,
		entryID:         entryID,
		target:          col.Name,
		source:          source,
		issuedAt:        now,
	}
	s.metrics.TransitionsApplied.Inc()

	return token, col.Name, entry, nil
}

// completeTransition reconciles a confirmation response with current local
// state. Stale responses (token mismatch) never mutate anything.
func (s *BoardSession) completeTransition(itemID string, token uint64, target string, confirmErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, inflight := s.pending[itemID]
	if !inflight || p.token != token {
		s.metrics.TransitionsStale.Inc()
		s.logger.Debug("Ignoring stale transition confirmation", "item_id", itemID, "target", target)
		return entities.ErrTransitionStale
	}
	delete(s.pending, itemID)

	if confirmErr == nil {
		// Confirmed: the optimistic state is already correct.
		s.metrics.TransitionsConfirmed.Inc()
		s.logger.Info("Status change confirmed", "item_id", itemID, "status", target)
		return nil
	}

	// Rollback: restore the last confirmed status and drop the provisional
	// activity entry.
	if item, ok := s.items[itemID]; ok {
		item.Status = p.confirmedStatus
		item.UpdatedAt = time.Now()
		item.RemoveActivity(p.entryID)
	}
	s.metrics.TransitionsRolledBack.Inc()
	s.pushNoticeLocked(itemID, fmt.Sprintf("Could not move item to %s; change was undone", target))
	s.logger.Warn("Status change rolled back",
		"item_id", itemID,
		"target", target,
		"restored", p.confirmedStatus,
		"error", confirmErr,
	)

	return fmt.Errorf("%w: %v", entities.ErrTransitionRejected, confirmErr)
}
