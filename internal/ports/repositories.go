package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pipeboard/core/internal/domain/entities"
)

// RemoteStore is the system of record the board session reconciles against.
// The session applies changes optimistically and rolls back when a call
// here fails; implementations may reject or delay any mutation.
type RemoteStore interface {
	// ListItems returns items together with their activity logs.
	ListItems(ctx context.Context, hints ListHints) ([]*entities.Item, error)

	// UpdateItemStatus persists a status change together with its activity
	// log entry in one atomic operation, so the append-only log can never
	// drift from the status it records.
	UpdateItemStatus(ctx context.Context, itemID, newStatus string, entry *entities.ActivityEntry) error

	ListColumns(ctx context.Context) ([]entities.Column, error)
	CreateColumn(ctx context.Context, column *entities.Column) error
	RenameColumn(ctx context.Context, id uuid.UUID, newName string) error
	DeleteColumn(ctx context.Context, id uuid.UUID) error
}

// CacheRepository defines the interface for caching operations.
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ListHints narrows a remote item listing. All fields optional; the store
// may ignore hints it cannot serve, the engines re-filter locally anyway.
type ListHints struct {
	Kind      *entities.ItemKind
	Statuses  []string
	Search    *string
	DueBefore *time.Time
	Limit     int
	Offset    int
}
