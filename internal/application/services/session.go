package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pipeboard/core/internal/domain/board"
	"github.com/pipeboard/core/internal/domain/entities"
	"github.com/pipeboard/core/internal/infrastructure/logger"
	"github.com/pipeboard/core/internal/ports"
)

const (
	itemsCacheKey = "board:items"
	itemsCacheTTL = 30 * time.Second
	maxNotices    = 50
)

// BoardOptions carries the board policy knobs, typically sourced from
// configuration.
type BoardOptions struct {
	ProtectedColumns []string // default lanes that cannot be renamed or deleted
	TerminalStatuses []string // lanes whose items never count as overdue
	CollapseIfEmpty  []string // lanes hidden from the projection when empty
}

// BoardSession owns the in-memory item store and column registry for one
// open board view and reconciles every mutation against the remote store.
// All mutation goes through the transition controller (transition.go) and
// the column lifecycle manager (columns.go); the filter/sort/project
// pipeline only ever reads cloned snapshots.
type BoardSession struct {
	store   ports.RemoteStore
	cache   ports.CacheRepository
	logger  *logger.Logger
	metrics *BoardMetrics
	opts    BoardOptions

	mu      sync.RWMutex
	items   map[string]*entities.Item
	order   []string // item ids in remote listing order
	columns []entities.Column

	// pending tracks the in-flight optimistic transition per item; tokens
	// are monotonic so a stale confirmation can never clobber a newer one.
	pending   map[string]*pendingTransition
	nextToken uint64

	notices []ports.Notice
}

// NewBoardSession creates a board session. The cache repository is
// optional; pass nil to disable caching of remote item listings.
func NewBoardSession(store ports.RemoteStore, cache ports.CacheRepository, opts BoardOptions, metrics *BoardMetrics, logger *logger.Logger) *BoardSession {
	return &BoardSession{
		store:   store,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		items:   make(map[string]*entities.Item),
		pending: make(map[string]*pendingTransition),
	}
}

// Refresh reloads columns and items from the remote store. Items with an
// in-flight transition keep their optimistic local status so a refresh can
// never paint a stale intermediate state over a pending intent.
func (s *BoardSession) Refresh(ctx context.Context) error {
	columns, err := s.store.ListColumns(ctx)
	if err != nil {
		return fmt.Errorf("list columns: %w", err)
	}

	items, err := s.loadItems(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.columns = columns

	fresh := make(map[string]*entities.Item, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		if _, inflight := s.pending[it.ID]; inflight {
			if prev, ok := s.items[it.ID]; ok {
				// Keep the optimistic view until the transition settles.
				it.Status = prev.Status
				it.Activity = prev.Activity
			}
		}
		fresh[it.ID] = it
		order = append(order, it.ID)
	}
	s.items = fresh
	s.order = order

	s.logger.Debug("Board refreshed", "items", len(items), "columns", len(columns))
	return nil
}

// loadItems consults the cache before hitting the remote store.
func (s *BoardSession) loadItems(ctx context.Context) ([]*entities.Item, error) {
	if s.cache != nil {
		var cached []*entities.Item
		if err := s.cache.Get(ctx, itemsCacheKey, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	items, err := s.store.ListItems(ctx, ports.ListHints{})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, itemsCacheKey, items, itemsCacheTTL); err != nil {
			s.logger.Warn("Failed to cache item listing", "error", err)
		}
	}
	return items, nil
}

// invalidateItemCache drops the cached listing after any mutation.
// Callers must not hold the session lock.
func (s *BoardSession) invalidateItemCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, itemsCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate item cache", "error", err)
	}
}

// VisibleBoard computes the filtered, sorted, paginated per-column view.
// It operates on a snapshot, so concurrent mutations cannot tear the
// projection mid-computation.
func (s *BoardSession) VisibleBoard(req ports.BoardRequest) board.Projection {
	items, columns := s.snapshot()

	items = board.Filter(items, req.Criteria)

	key, dir := board.NormalizeSort(req.SortKey, req.SortDirection)
	items = board.Sort(items, key, dir)

	return board.Project(items, columns, board.ProjectOptions{
		Now:              time.Now(),
		TerminalStatuses: s.opts.TerminalStatuses,
		CollapseIfEmpty:  s.opts.CollapseIfEmpty,
		PerColumnLimit:   req.PerColumnLimit,
		PerColumnOffset:  req.PerColumnOffset,
	})
}

// Items returns the filtered, sorted flat item list.
func (s *BoardSession) Items(criteria board.Criteria, key board.SortKey, dir board.SortDirection) []*entities.Item {
	items, _ := s.snapshot()
	items = board.Filter(items, criteria)
	key, dir = board.NormalizeSort(key, dir)
	return board.Sort(items, key, dir)
}

// Item returns a copy of a single item.
func (s *BoardSession) Item(id string) (*entities.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, entities.ErrItemNotFound
	}
	return it.Clone(), nil
}

// Columns returns a copy of the column registry in lane order.
func (s *BoardSession) Columns() []entities.Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Column(nil), s.columns...)
}

// Notices drains and returns the accumulated user-visible notices.
func (s *BoardSession) Notices() []ports.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// snapshot clones the item store and column registry so engine functions
// never retain a handle a concurrent handler could mutate.
func (s *BoardSession) snapshot() ([]*entities.Item, []entities.Column) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*entities.Item, 0, len(s.order))
	for _, id := range s.order {
		if it, ok := s.items[id]; ok {
			items = append(items, it.Clone())
		}
	}
	columns := append([]entities.Column(nil), s.columns...)
	return items, columns
}

// resolveColumnLocked returns the registry column matching the given name,
// case-insensitively. Caller must hold the lock.
func (s *BoardSession) resolveColumnLocked(name string) (*entities.Column, bool) {
	for i := range s.columns {
		if strings.EqualFold(s.columns[i].Name, name) {
			return &s.columns[i], true
		}
	}
	return nil, false
}

// columnByIDLocked returns the registry column with the given id. Caller
// must hold the lock.
func (s *BoardSession) columnByIDLocked(id uuid.UUID) (*entities.Column, bool) {
	for i := range s.columns {
		if s.columns[i].ID == id {
			return &s.columns[i], true
		}
	}
	return nil, false
}

// pushNoticeLocked records a user-visible notice. Caller must hold the lock.
func (s *BoardSession) pushNoticeLocked(itemID, message string) {
	s.notices = append(s.notices, ports.Notice{
		ItemID:    itemID,
		Message:   message,
		Timestamp: time.Now(),
	})
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
}
