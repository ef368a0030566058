package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrItemNotFound       = errors.New("item not found")
	ErrColumnNotFound     = errors.New("column not found")
	ErrDuplicateColumn    = errors.New("column name already exists")
	ErrProtectedColumn    = errors.New("column is protected and cannot be modified")
	ErrColumnInUse        = errors.New("column still has items assigned to it")
	ErrInvalidColumnName  = errors.New("invalid column name")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidItemKind    = errors.New("invalid item kind")
	ErrTransitionRejected = errors.New("status transition rejected by remote store")
	ErrTransitionStale    = errors.New("status transition superseded by a newer one")
)

// Enums and types
type ItemKind string

const (
	ItemKindPost ItemKind = "post"
	ItemKindTask ItemKind = "task"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// priorityWeights defines the total order used for sorting and breakdowns.
var priorityWeights = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
	PriorityUrgent: 4,
}

// TransitionSource identifies what triggered a status change.
type TransitionSource string

const (
	TransitionSourceExplicit TransitionSource = "explicit"
	TransitionSourceDrag     TransitionSource = "drag"
)

// ActivityAction enumerates the actions recorded in an item's activity log.
type ActivityAction string

const (
	ActivityStatusChanged  ActivityAction = "status_changed"
	ActivityContentChanged ActivityAction = "content_changed"
	ActivityCreated        ActivityAction = "created"
)

// Item represents one unit of work on the board: a content post or a
// project task. Kind-specific fields (Media, Comments, ScheduledAt for
// posts; Category for tasks) are optional on the shared shape; the board
// engine only ever reads the common ones.
type Item struct {
	ID          string          `json:"id" db:"id"`
	Kind        ItemKind        `json:"kind" db:"kind"`
	Title       string          `json:"title" db:"title"`
	Content     string          `json:"content" db:"content"`
	Status      string          `json:"status" db:"status"`
	Priority    Priority        `json:"priority" db:"priority"`
	Category    string          `json:"category" db:"category"`
	Assignees   []string        `json:"assignees"`
	Tags        []string        `json:"tags"`
	Media       []string        `json:"media"`
	Comments    []string        `json:"comments"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	DueDate     *time.Time      `json:"due_date" db:"due_date"`
	ScheduledAt *time.Time      `json:"scheduled_at" db:"scheduled_at"`
	Activity    []ActivityEntry `json:"activity"`
}

// ActivityEntry is one record in an item's append-only activity log.
// Entries are never mutated or reordered once appended.
type ActivityEntry struct {
	ID        string         `json:"id" db:"id"`
	ItemID    string         `json:"item_id" db:"item_id"`
	Action    ActivityAction `json:"action" db:"action"`
	Details   string         `json:"details" db:"details"`
	Author    string         `json:"author" db:"author"`
	Timestamp time.Time      `json:"timestamp" db:"created_at"`
}

// Column represents one board lane. Items reference a column through the
// Name field of their status, compared case-insensitively.
type Column struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ColumnStats holds the per-column aggregates computed by the projector.
type ColumnStats struct {
	Total             int              `json:"total"`
	OverdueCount      int              `json:"overdue_count"`
	PriorityBreakdown map[Priority]int `json:"priority_breakdown"`
}

// Business logic methods for Item

// Clone returns a deep copy so engine snapshots cannot be mutated by a
// concurrent handler mid-computation.
func (i *Item) Clone() *Item {
	c := *i
	c.Assignees = append([]string(nil), i.Assignees...)
	c.Tags = append([]string(nil), i.Tags...)
	c.Media = append([]string(nil), i.Media...)
	c.Comments = append([]string(nil), i.Comments...)
	c.Activity = append([]ActivityEntry(nil), i.Activity...)
	if i.DueDate != nil {
		d := *i.DueDate
		c.DueDate = &d
	}
	if i.ScheduledAt != nil {
		s := *i.ScheduledAt
		c.ScheduledAt = &s
	}
	return &c
}

// IsOverdue reports whether the item is past due. Items already in a
// terminal lane never count as overdue.
func (i *Item) IsOverdue(now time.Time, terminalStatuses []string) bool {
	if i.DueDate == nil {
		return false
	}
	if !i.DueDate.Before(now) {
		return false
	}
	for _, s := range terminalStatuses {
		if strings.EqualFold(i.Status, s) {
			return false
		}
	}
	return true
}

// InStatus compares the item's status to a column name, case-insensitively.
func (i *Item) InStatus(columnName string) bool {
	return strings.EqualFold(i.Status, columnName)
}

// HasMedia reports whether the item carries any media attachment.
func (i *Item) HasMedia() bool { return len(i.Media) > 0 }

// HasComments reports whether the item has any comments.
func (i *Item) HasComments() bool { return len(i.Comments) > 0 }

// AppendActivity appends an entry to the item's activity log and returns
// the entry's generated id.
func (i *Item) AppendActivity(action ActivityAction, details, author string, at time.Time) string {
	entry := ActivityEntry{
		ID:        uuid.NewString(),
		ItemID:    i.ID,
		Action:    action,
		Details:   details,
		Author:    author,
		Timestamp: at,
	}
	i.Activity = append(i.Activity, entry)
	return entry.ID
}

// RemoveActivity deletes the entry with the given id. Used only to revert
// a provisional entry when an optimistic transition rolls back.
func (i *Item) RemoveActivity(entryID string) bool {
	for idx, e := range i.Activity {
		if e.ID == entryID {
			i.Activity = append(i.Activity[:idx], i.Activity[idx+1:]...)
			return true
		}
	}
	return false
}

// Business logic methods for Column

// IsDefault reports whether the column belongs to the protected set.
func (c *Column) IsDefault(protectedNames []string) bool {
	for _, n := range protectedNames {
		if strings.EqualFold(c.Name, n) {
			return true
		}
	}
	return false
}

// Utility methods

// Weight returns the fixed sort weight of the priority. Unknown priorities
// weigh zero and sort below low.
func (p Priority) Weight() int {
	return priorityWeights[p]
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

func (k ItemKind) IsValid() bool {
	switch k {
	case ItemKindPost, ItemKindTask:
		return true
	default:
		return false
	}
}

// Label returns the human-readable label for the item kind, used by the
// type sort key.
func (k ItemKind) Label() string {
	switch k {
	case ItemKindPost:
		return "Post"
	case ItemKindTask:
		return "Task"
	default:
		return string(k)
	}
}
