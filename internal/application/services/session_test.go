package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeboard/core/internal/domain/board"
	"github.com/pipeboard/core/internal/domain/entities"
	"github.com/pipeboard/core/internal/infrastructure/logger"
	"github.com/pipeboard/core/internal/ports"
)

// fakeStore is an in-memory RemoteStore. Hooks let tests inject failures
// and delays at the confirmation boundary. Confirmed status changes are
// persisted, activity entry included, like the real store.
type fakeStore struct {
	mu      sync.Mutex
	items   []*entities.Item
	columns []entities.Column
	deleted []uuid.UUID

	onUpdateStatus func(itemID, newStatus string) error
	onCreateColumn func(column *entities.Column) error
	columnErr      error
}

func (f *fakeStore) ListItems(ctx context.Context, hints ports.ListHints) ([]*entities.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entities.Item, len(f.items))
	for i, it := range f.items {
		out[i] = it.Clone()
	}
	return out, nil
}

func (f *fakeStore) UpdateItemStatus(ctx context.Context, itemID, newStatus string, entry *entities.ActivityEntry) error {
	if f.onUpdateStatus != nil {
		if err := f.onUpdateStatus(itemID, newStatus); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID == itemID {
			it.Status = newStatus
			if entry != nil {
				it.Activity = append(it.Activity, *entry)
			}
		}
	}
	return nil
}

func (f *fakeStore) ListColumns(ctx context.Context) ([]entities.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Column(nil), f.columns...), nil
}

func (f *fakeStore) CreateColumn(ctx context.Context, column *entities.Column) error {
	if f.onCreateColumn != nil {
		return f.onCreateColumn(column)
	}
	return f.columnErr
}

func (f *fakeStore) RenameColumn(ctx context.Context, id uuid.UUID, newName string) error {
	return f.columnErr
}

func (f *fakeStore) DeleteColumn(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return f.columnErr
}

func (f *fakeStore) deletedColumns() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.deleted...)
}

var testColumnIDs = struct {
	todo, inProgress, done, review uuid.UUID
}{uuid.New(), uuid.New(), uuid.New(), uuid.New()}

func newTestStore() *fakeStore {
	return &fakeStore{
		columns: []entities.Column{
			{ID: testColumnIDs.todo, Name: "todo", Position: 0},
			{ID: testColumnIDs.inProgress, Name: "in progress", Position: 1},
			{ID: testColumnIDs.done, Name: "done", Position: 2},
			{ID: testColumnIDs.review, Name: "In Review", Position: 3},
		},
		items: []*entities.Item{
			{ID: "1", Kind: entities.ItemKindTask, Title: "First", Status: "todo", Priority: entities.PriorityHigh},
			{ID: "2", Kind: entities.ItemKindPost, Title: "Second", Status: "in progress", Priority: entities.PriorityUrgent},
		},
	}
}

func newTestSession(t *testing.T, store *fakeStore) *BoardSession {
	t.Helper()
	s := NewBoardSession(store, nil, BoardOptions{
		ProtectedColumns: []string{"todo", "in progress", "done"},
		TerminalStatuses: []string{"done"},
	}, NewBoardMetrics(), logger.NewNop())
	require.NoError(t, s.Refresh(context.Background()))
	return s
}

func TestRefreshLoadsBoard(t *testing.T) {
	s := newTestSession(t, newTestStore())
	assert.Len(t, s.Columns(), 4)

	item, err := s.Item("1")
	require.NoError(t, err)
	assert.Equal(t, "todo", item.Status)
}

func TestStatusChangeConfirmed(t *testing.T) {
	s := newTestSession(t, newTestStore())

	err := s.RequestStatusChange(context.Background(), "1", "in_review", entities.TransitionSourceDrag)
	// "in_review" is not a registered lane; "In Review" is.
	require.Error(t, err)

	err = s.RequestStatusChange(context.Background(), "1", "in review", entities.TransitionSourceDrag)
	require.NoError(t, err)

	item, err := s.Item("1")
	require.NoError(t, err)
	// Status takes the registry's canonical casing.
	assert.Equal(t, "In Review", item.Status)

	require.Len(t, item.Activity, 1)
	assert.Equal(t, entities.ActivityStatusChanged, item.Activity[0].Action)
	assert.Equal(t, "Status changed to In Review", item.Activity[0].Details)
	assert.Equal(t, "drag", item.Activity[0].Author)
}

func TestActivitySurvivesRefresh(t *testing.T) {
	s := newTestSession(t, newTestStore())

	require.NoError(t, s.RequestStatusChange(context.Background(), "1", "done", entities.TransitionSourceDrag))
	require.NoError(t, s.Refresh(context.Background()))

	// The log entry was persisted with the status change and comes back
	// with the fresh listing.
	item, err := s.Item("1")
	require.NoError(t, err)
	assert.Equal(t, "done", item.Status)
	require.Len(t, item.Activity, 1)
	assert.Equal(t, "Status changed to done", item.Activity[0].Details)
	assert.Equal(t, entities.ActivityStatusChanged, item.Activity[0].Action)
}

func TestStatusChangeUnknownColumnRejected(t *testing.T) {
	s := newTestSession(t, newTestStore())

	err := s.RequestStatusChange(context.Background(), "1", "nonexistent", entities.TransitionSourceExplicit)
	assert.ErrorIs(t, err, entities.ErrColumnNotFound)

	// Nothing changed.
	item, _ := s.Item("1")
	assert.Equal(t, "todo", item.Status)
	assert.Empty(t, item.Activity)
}

func TestStatusChangeUnknownItemRejected(t *testing.T) {
	s := newTestSession(t, newTestStore())
	err := s.RequestStatusChange(context.Background(), "missing", "done", entities.TransitionSourceExplicit)
	assert.ErrorIs(t, err, entities.ErrItemNotFound)
}

func TestStatusChangeRollbackOnFailure(t *testing.T) {
	store := newTestStore()
	store.onUpdateStatus = func(itemID, newStatus string) error {
		return errors.New("backend rejected the change")
	}
	s := newTestSession(t, store)

	err := s.RequestStatusChange(context.Background(), "1", "in review", entities.TransitionSourceDrag)
	assert.ErrorIs(t, err, entities.ErrTransitionRejected)

	item, _ := s.Item("1")
	assert.Equal(t, "todo", item.Status, "status must revert to pre-transition value")
	assert.Empty(t, item.Activity, "provisional log entry must be removed")

	notices := s.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, "1", notices[0].ItemID)
}

func TestStatusChangeSupersededConfirmationIgnored(t *testing.T) {
	firstIssued := make(chan struct{})
	release := make(chan struct{})

	store := newTestStore()
	var calls int
	var callMu sync.Mutex
	store.onUpdateStatus = func(itemID, newStatus string) error {
		callMu.Lock()
		calls++
		first := calls == 1
		callMu.Unlock()
		if first {
			close(firstIssued)
			<-release // hold the first confirmation until the second lands
		}
		return nil
	}
	s := newTestSession(t, store)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = s.RequestStatusChange(context.Background(), "1", "in review", entities.TransitionSourceDrag)
	}()

	<-firstIssued
	secondErr := s.RequestStatusChange(context.Background(), "1", "done", entities.TransitionSourceExplicit)
	close(release)
	wg.Wait()

	require.NoError(t, secondErr)
	assert.ErrorIs(t, firstErr, entities.ErrTransitionStale)

	item, _ := s.Item("1")
	assert.Equal(t, "done", item.Status, "last intent wins")
	require.Len(t, item.Activity, 1, "superseded provisional entry is dropped")
	assert.Equal(t, "Status changed to done", item.Activity[0].Details)
}

func TestSupersededThenFailureRollsBackToConfirmed(t *testing.T) {
	firstIssued := make(chan struct{})
	release := make(chan struct{})

	store := newTestStore()
	var calls int
	var callMu sync.Mutex
	store.onUpdateStatus = func(itemID, newStatus string) error {
		callMu.Lock()
		calls++
		n := calls
		callMu.Unlock()
		if n == 1 {
			close(firstIssued)
			<-release
			return nil
		}
		return errors.New("rejected")
	}
	s := newTestSession(t, store)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RequestStatusChange(context.Background(), "1", "in review", entities.TransitionSourceDrag)
	}()

	<-firstIssued
	err := s.RequestStatusChange(context.Background(), "1", "done", entities.TransitionSourceExplicit)
	close(release)
	wg.Wait()

	assert.ErrorIs(t, err, entities.ErrTransitionRejected)

	// Rollback lands on the last *confirmed* status, not the superseded
	// optimistic one.
	item, _ := s.Item("1")
	assert.Equal(t, "todo", item.Status)
	assert.Empty(t, item.Activity)
}

func TestVisibleBoardReflectsTransitions(t *testing.T) {
	s := newTestSession(t, newTestStore())

	require.NoError(t, s.RequestStatusChange(context.Background(), "1", "done", entities.TransitionSourceExplicit))

	proj := s.VisibleBoard(ports.BoardRequest{})
	var doneItems []*entities.Item
	for _, cv := range proj.Columns {
		if cv.Column.Name == "done" {
			doneItems = cv.Items
		}
	}
	require.Len(t, doneItems, 1)
	assert.Equal(t, "1", doneItems[0].ID)
}

func TestVisibleBoardSnapshotIsolation(t *testing.T) {
	s := newTestSession(t, newTestStore())

	proj := s.VisibleBoard(ports.BoardRequest{})
	for _, cv := range proj.Columns {
		for _, it := range cv.Items {
			it.Status = "tampered"
		}
	}

	item, _ := s.Item("1")
	assert.Equal(t, "todo", item.Status)
}

func TestCreateColumn(t *testing.T) {
	s := newTestSession(t, newTestStore())

	col, err := s.RequestCreateColumn(context.Background(), "Blocked")
	require.NoError(t, err)
	assert.Equal(t, "Blocked", col.Name)
	assert.Len(t, s.Columns(), 5)
}

func TestCreateColumnDuplicateNameRejected(t *testing.T) {
	s := newTestSession(t, newTestStore())

	// Case-insensitive collision with "todo".
	_, err := s.RequestCreateColumn(context.Background(), "Todo")
	assert.ErrorIs(t, err, entities.ErrDuplicateColumn)
	assert.Len(t, s.Columns(), 4)
}

func TestCreateColumnRemoteFailure(t *testing.T) {
	store := newTestStore()
	store.columnErr = errors.New("store down")
	s := newTestSession(t, store)

	_, err := s.RequestCreateColumn(context.Background(), "Blocked")
	require.Error(t, err)
	assert.Len(t, s.Columns(), 4)
}

func TestCreateColumnRaceUndoesRemote(t *testing.T) {
	firstIssued := make(chan struct{})
	release := make(chan struct{})

	store := newTestStore()
	var calls int
	var callMu sync.Mutex
	store.onCreateColumn = func(column *entities.Column) error {
		callMu.Lock()
		calls++
		first := calls == 1
		callMu.Unlock()
		if first {
			close(firstIssued)
			<-release // hold the first create until the second lands
		}
		return nil
	}
	s := newTestSession(t, store)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = s.RequestCreateColumn(context.Background(), "Blocked")
	}()

	<-firstIssued
	winner, secondErr := s.RequestCreateColumn(context.Background(), "blocked")
	close(release)
	wg.Wait()

	require.NoError(t, secondErr)
	assert.ErrorIs(t, firstErr, entities.ErrDuplicateColumn)

	// The loser removed its remotely created column; only the winner's
	// lane survives in both stores.
	deleted := store.deletedColumns()
	require.Len(t, deleted, 1)
	assert.NotEqual(t, winner.ID, deleted[0])
	assert.Len(t, s.Columns(), 5)
}

func TestRenameColumnMigratesItems(t *testing.T) {
	s := newTestSession(t, newTestStore())
	require.NoError(t, s.RequestStatusChange(context.Background(), "1", "In Review", entities.TransitionSourceExplicit))

	err := s.RequestRenameColumn(context.Background(), testColumnIDs.review, "Needs Review")
	require.NoError(t, err)

	item, _ := s.Item("1")
	assert.Equal(t, "Needs Review", item.Status, "items follow the renamed column")

	proj := s.VisibleBoard(ports.BoardRequest{})
	var found bool
	for _, cv := range proj.Columns {
		if cv.Column.Name == "Needs Review" {
			found = true
			assert.Len(t, cv.Items, 1)
		}
	}
	assert.True(t, found)
}

func TestRenameProtectedColumnRejected(t *testing.T) {
	s := newTestSession(t, newTestStore())

	err := s.RequestRenameColumn(context.Background(), testColumnIDs.todo, "Backlog")
	assert.ErrorIs(t, err, entities.ErrProtectedColumn)

	cols := s.Columns()
	assert.Equal(t, "todo", cols[0].Name)
}

func TestRenameColumnDuplicateRejected(t *testing.T) {
	s := newTestSession(t, newTestStore())

	err := s.RequestRenameColumn(context.Background(), testColumnIDs.review, "DONE")
	assert.ErrorIs(t, err, entities.ErrDuplicateColumn)
}

func TestDeleteColumn(t *testing.T) {
	s := newTestSession(t, newTestStore())

	err := s.RequestDeleteColumn(context.Background(), testColumnIDs.review)
	require.NoError(t, err)
	assert.Len(t, s.Columns(), 3)
}

func TestDeleteProtectedColumnRejected(t *testing.T) {
	s := newTestSession(t, newTestStore())

	for _, id := range []uuid.UUID{testColumnIDs.todo, testColumnIDs.inProgress, testColumnIDs.done} {
		err := s.RequestDeleteColumn(context.Background(), id)
		assert.ErrorIs(t, err, entities.ErrProtectedColumn)
	}
	assert.Len(t, s.Columns(), 4)
}

func TestDeleteColumnWithItemsBlocked(t *testing.T) {
	s := newTestSession(t, newTestStore())
	require.NoError(t, s.RequestStatusChange(context.Background(), "1", "In Review", entities.TransitionSourceExplicit))

	err := s.RequestDeleteColumn(context.Background(), testColumnIDs.review)
	assert.ErrorIs(t, err, entities.ErrColumnInUse)
	assert.Len(t, s.Columns(), 4)
}

func TestDeleteUnknownColumnRejected(t *testing.T) {
	s := newTestSession(t, newTestStore())
	err := s.RequestDeleteColumn(context.Background(), uuid.New())
	assert.ErrorIs(t, err, entities.ErrColumnNotFound)
}

func TestRefreshKeepsOptimisticStateForPendingItems(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	store := newTestStore()
	store.onUpdateStatus = func(itemID, newStatus string) error {
		close(started)
		<-release
		return nil
	}
	s := newTestSession(t, store)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RequestStatusChange(context.Background(), "1", "done", entities.TransitionSourceDrag)
	}()

	<-started
	// A background refetch lands while the confirmation is in flight; it
	// must not paint the stale remote status over the optimistic one.
	require.NoError(t, s.Refresh(context.Background()))

	item, _ := s.Item("1")
	assert.Equal(t, "done", item.Status)

	close(release)
	wg.Wait()
}

func TestNoticesDrain(t *testing.T) {
	store := newTestStore()
	store.onUpdateStatus = func(itemID, newStatus string) error {
		return errors.New("nope")
	}
	s := newTestSession(t, store)

	_ = s.RequestStatusChange(context.Background(), "1", "done", entities.TransitionSourceExplicit)

	assert.Len(t, s.Notices(), 1)
	assert.Empty(t, s.Notices(), "notices drain on read")
}

func TestItemsSortedDefault(t *testing.T) {
	s := newTestSession(t, newTestStore())

	items := s.Items(board.Criteria{}, "", "")
	require.Len(t, items, 2)
	// Default ordering is priority descending: urgent before high.
	assert.Equal(t, "2", items[0].ID)
	assert.Equal(t, "1", items[1].ID)
}

func TestItemsHonorsDirectionWithDefaultKey(t *testing.T) {
	s := newTestSession(t, newTestStore())

	// Only the key is defaulted; an explicit direction flips the order.
	items := s.Items(board.Criteria{}, "", board.SortAsc)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "2", items[1].ID)
}

func TestOverdueExampleTiming(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	store := newTestStore()
	store.items = []*entities.Item{
		{ID: "a", Kind: entities.ItemKindTask, Status: "todo", Priority: entities.PriorityHigh, DueDate: &past},
		{ID: "b", Kind: entities.ItemKindTask, Status: "done", Priority: entities.PriorityHigh, DueDate: &past},
	}
	s := newTestSession(t, store)

	proj := s.VisibleBoard(ports.BoardRequest{})
	for _, cv := range proj.Columns {
		switch cv.Column.Name {
		case "todo":
			assert.Equal(t, 1, cv.Stats.OverdueCount)
		case "done":
			assert.Equal(t, 0, cv.Stats.OverdueCount)
		}
	}
}
