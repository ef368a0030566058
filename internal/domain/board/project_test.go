package board

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeboard/core/internal/domain/entities"
)

func testColumns(names ...string) []entities.Column {
	cols := make([]entities.Column, len(names))
	for i, n := range names {
		cols[i] = entities.Column{ID: uuid.New(), Name: n, Position: i}
	}
	return cols
}

func TestProjectGroupsByStatusCaseInsensitive(t *testing.T) {
	cols := testColumns("Todo", "In Progress", "Done")
	items := []*entities.Item{
		{ID: "1", Status: "todo"},
		{ID: "2", Status: "IN PROGRESS"},
		{ID: "3", Status: "Todo"},
	}

	proj := Project(items, cols, ProjectOptions{})
	require.Len(t, proj.Columns, 3)

	assert.Equal(t, []string{"1", "3"}, ids(proj.Columns[0].Items))
	assert.Equal(t, []string{"2"}, ids(proj.Columns[1].Items))
	assert.Empty(t, proj.Columns[2].Items)
	assert.Empty(t, proj.Unmatched)
}

func TestProjectCompleteness(t *testing.T) {
	// Every input item lands in exactly one bucket; nothing lost or doubled.
	cols := testColumns("draft", "scheduled", "in progress", "todo")
	items := testItems()

	proj := Project(items, cols, ProjectOptions{})

	seen := map[string]int{}
	for _, cv := range proj.Columns {
		for _, it := range cv.Items {
			seen[it.ID]++
		}
	}
	for _, it := range proj.Unmatched {
		seen[it.ID]++
	}

	require.Len(t, seen, len(items))
	for id, n := range seen {
		assert.Equal(t, 1, n, "item %s appeared %d times", id, n)
	}
}

func TestProjectUnmatchedItemsAreKept(t *testing.T) {
	cols := testColumns("todo")
	items := []*entities.Item{
		{ID: "1", Status: "todo"},
		{ID: "2", Status: "limbo"},
	}

	proj := Project(items, cols, ProjectOptions{})
	require.Len(t, proj.Unmatched, 1)
	assert.Equal(t, "2", proj.Unmatched[0].ID)
}

func TestProjectStats(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	cols := testColumns("todo", "done")
	items := []*entities.Item{
		{ID: "1", Status: "todo", Priority: entities.PriorityUrgent, DueDate: &past},
		{ID: "2", Status: "todo", Priority: entities.PriorityHigh, DueDate: &future},
		{ID: "3", Status: "todo", Priority: entities.PriorityUrgent},
		{ID: "4", Status: "done", Priority: entities.PriorityLow, DueDate: &past},
	}

	proj := Project(items, cols, ProjectOptions{
		Now:              now,
		TerminalStatuses: []string{"done"},
	})
	require.Len(t, proj.Columns, 2)

	todo := proj.Columns[0].Stats
	assert.Equal(t, 3, todo.Total)
	assert.Equal(t, 1, todo.OverdueCount)
	assert.Equal(t, 2, todo.PriorityBreakdown[entities.PriorityUrgent])
	assert.Equal(t, 1, todo.PriorityBreakdown[entities.PriorityHigh])
	assert.Equal(t, 0, todo.PriorityBreakdown[entities.PriorityLow])

	// Past due but in a terminal lane: never overdue.
	done := proj.Columns[1].Stats
	assert.Equal(t, 1, done.Total)
	assert.Equal(t, 0, done.OverdueCount)
}

func TestProjectCollapseIfEmpty(t *testing.T) {
	cols := testColumns("todo", "archived")
	items := []*entities.Item{{ID: "1", Status: "todo"}}

	proj := Project(items, cols, ProjectOptions{CollapseIfEmpty: []string{"archived"}})
	require.Len(t, proj.Columns, 1)
	assert.Equal(t, "todo", proj.Columns[0].Column.Name)

	// A non-empty archival lane still shows.
	items = append(items, &entities.Item{ID: "2", Status: "archived"})
	proj = Project(items, cols, ProjectOptions{CollapseIfEmpty: []string{"archived"}})
	assert.Len(t, proj.Columns, 2)
}

func TestProjectEmptyNonCollapsibleColumnShows(t *testing.T) {
	cols := testColumns("todo", "done")
	proj := Project(nil, cols, ProjectOptions{})
	assert.Len(t, proj.Columns, 2)
}

func TestProjectPagination(t *testing.T) {
	cols := testColumns("todo")
	items := []*entities.Item{
		{ID: "1", Status: "todo"},
		{ID: "2", Status: "todo"},
		{ID: "3", Status: "todo"},
	}

	proj := Project(items, cols, ProjectOptions{PerColumnLimit: 2})
	require.Len(t, proj.Columns, 1)
	assert.Equal(t, []string{"1", "2"}, ids(proj.Columns[0].Items))
	// Stats cover the whole column, not just the page.
	assert.Equal(t, 3, proj.Columns[0].Stats.Total)

	proj = Project(items, cols, ProjectOptions{PerColumnLimit: 2, PerColumnOffset: 2})
	assert.Equal(t, []string{"3"}, ids(proj.Columns[0].Items))

	proj = Project(items, cols, ProjectOptions{PerColumnOffset: 10})
	assert.Empty(t, proj.Columns[0].Items)
}

func TestProjectPreservesUpstreamOrder(t *testing.T) {
	cols := testColumns("todo")
	items := []*entities.Item{
		{ID: "1", Status: "todo", Priority: entities.PriorityLow},
		{ID: "2", Status: "todo", Priority: entities.PriorityUrgent},
		{ID: "3", Status: "todo", Priority: entities.PriorityMedium},
	}
	sorted := Sort(items, SortByPriority, SortDesc)

	proj := Project(sorted, cols, ProjectOptions{})
	assert.Equal(t, ids(sorted), ids(proj.Columns[0].Items))
}
