package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pipeboard/core/internal/domain/board"
	"github.com/pipeboard/core/internal/domain/entities"
)

// BoardService is the surface the presentation layer consumes. Status and
// column mutations are fire-and-forget from the UI's point of view: the UI
// observes results through the next board projection.
type BoardService interface {
	Refresh(ctx context.Context) error
	VisibleBoard(req BoardRequest) board.Projection
	Items(criteria board.Criteria, key board.SortKey, dir board.SortDirection) []*entities.Item
	Item(id string) (*entities.Item, error)
	RequestStatusChange(ctx context.Context, itemID, newStatus string, source entities.TransitionSource) error
	RequestCreateColumn(ctx context.Context, name string) (*entities.Column, error)
	RequestRenameColumn(ctx context.Context, id uuid.UUID, newName string) error
	RequestDeleteColumn(ctx context.Context, id uuid.UUID) error
	Columns() []entities.Column
	Notices() []Notice
}

// Notice is a recoverable, user-visible failure surfaced by the session,
// e.g. a rolled-back status change.
type Notice struct {
	ItemID    string    `json:"item_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// BoardRequest bundles the view parameters for one board projection.
type BoardRequest struct {
	Criteria        board.Criteria      `json:"criteria"`
	SortKey         board.SortKey       `json:"sort_key"`
	SortDirection   board.SortDirection `json:"sort_direction"`
	PerColumnLimit  int                 `json:"per_column_limit"`
	PerColumnOffset int                 `json:"per_column_offset"`
}

// Request types bound and validated at the HTTP boundary.

type StatusChangeRequest struct {
	NewStatus string `json:"new_status" validate:"required"`
	Source    string `json:"source" validate:"omitempty,oneof=explicit drag"`
}

type CreateColumnRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type RenameColumnRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}
