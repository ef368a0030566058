package board

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pipeboard/core/internal/domain/entities"
)

// ColumnView is one lane of the projected board: the items that landed in
// the column, in the order they arrived, plus the per-column aggregates.
type ColumnView struct {
	Column entities.Column      `json:"column"`
	Items  []*entities.Item     `json:"items"`
	Stats  entities.ColumnStats `json:"stats"`
}

// Projection is the per-column grouping of filtered, sorted items, ready
// for display. Order follows the column registry's lane order.
type Projection struct {
	Columns []ColumnView `json:"columns"`

	// Unmatched holds items whose status matched no registered column.
	// The projector never drops an item silently.
	Unmatched []*entities.Item `json:"unmatched,omitempty"`
}

// ProjectOptions tunes projection behavior.
type ProjectOptions struct {
	Now              time.Time
	TerminalStatuses []string // lanes whose items never count as overdue
	CollapseIfEmpty  []string // lanes omitted from the projection when empty
	PerColumnLimit   int      // 0 = no pagination
	PerColumnOffset  int
}

// Project groups items into the given columns by case-insensitive match
// between item status and column name, computing per-column stats. Item
// order within a column preserves input order, so stability established by
// Sort survives grouping.
func Project(items []*entities.Item, columns []entities.Column, opts ProjectOptions) Projection {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	buckets := make(map[uuid.UUID][]*entities.Item, len(columns))
	var unmatched []*entities.Item
	for _, it := range items {
		col, ok := resolveColumn(columns, it.Status)
		if !ok {
			unmatched = append(unmatched, it)
			continue
		}
		buckets[col.ID] = append(buckets[col.ID], it)
	}

	proj := Projection{Unmatched: unmatched}
	for _, col := range columns {
		colItems := buckets[col.ID]
		if len(colItems) == 0 && containsFold(opts.CollapseIfEmpty, col.Name) {
			continue
		}
		stats := computeStats(colItems, now, opts.TerminalStatuses)
		proj.Columns = append(proj.Columns, ColumnView{
			Column: col,
			Items:  paginate(colItems, opts.PerColumnOffset, opts.PerColumnLimit),
			Stats:  stats,
		})
	}
	return proj
}

// resolveColumn finds the column whose name matches the status,
// case-insensitively.
func resolveColumn(columns []entities.Column, status string) (entities.Column, bool) {
	for _, c := range columns {
		if strings.EqualFold(c.Name, status) {
			return c, true
		}
	}
	return entities.Column{}, false
}

// computeStats aggregates over the full (unpaginated) column contents.
func computeStats(items []*entities.Item, now time.Time, terminal []string) entities.ColumnStats {
	stats := entities.ColumnStats{
		Total: len(items),
		PriorityBreakdown: map[entities.Priority]int{
			entities.PriorityUrgent: 0,
			entities.PriorityHigh:   0,
			entities.PriorityMedium: 0,
			entities.PriorityLow:    0,
		},
	}
	for _, it := range items {
		if it.IsOverdue(now, terminal) {
			stats.OverdueCount++
		}
		if _, known := stats.PriorityBreakdown[it.Priority]; known {
			stats.PriorityBreakdown[it.Priority]++
		}
	}
	return stats
}

func paginate(items []*entities.Item, offset, limit int) []*entities.Item {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
