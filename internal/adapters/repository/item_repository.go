package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pipeboard/core/internal/domain/entities"
	"github.com/pipeboard/core/internal/ports"
)

// ItemRepository reads and mutates the items and item_activity tables. It
// runs against the pool by default; withTx rebinds it to a transaction so
// the remote store can compose multi-table operations atomically.
type ItemRepository struct {
	db sqlx.ExtContext
}

// NewItemRepository creates a new item repository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) withTx(tx *sqlx.Tx) *ItemRepository {
	return &ItemRepository{db: tx}
}

// itemRow mirrors the items table; array columns need pq wrappers.
type itemRow struct {
	ID          string            `db:"id"`
	Kind        entities.ItemKind `db:"kind"`
	Title       string            `db:"title"`
	Content     string            `db:"content"`
	Status      string            `db:"status"`
	Priority    entities.Priority `db:"priority"`
	Category    string            `db:"category"`
	Assignees   pq.StringArray    `db:"assignees"`
	Tags        pq.StringArray    `db:"tags"`
	Media       pq.StringArray    `db:"media"`
	Comments    pq.StringArray    `db:"comments"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
	DueDate     *time.Time        `db:"due_date"`
	ScheduledAt *time.Time        `db:"scheduled_at"`
}

func (r itemRow) toEntity() *entities.Item {
	return &entities.Item{
		ID:          r.ID,
		Kind:        r.Kind,
		Title:       r.Title,
		Content:     r.Content,
		Status:      r.Status,
		Priority:    r.Priority,
		Category:    r.Category,
		Assignees:   []string(r.Assignees),
		Tags:        []string(r.Tags),
		Media:       []string(r.Media),
		Comments:    []string(r.Comments),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		DueDate:     r.DueDate,
		ScheduledAt: r.ScheduledAt,
	}
}

const itemColumns = `id, kind, title, content, status, priority, category,
	assignees, tags, media, comments, created_at, updated_at, due_date, scheduled_at`

// List returns items matching the hints, each carrying its full activity
// log.
func (r *ItemRepository) List(ctx context.Context, hints ports.ListHints) ([]*entities.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if hints.Kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, *hints.Kind)
		argIdx++
	}
	if len(hints.Statuses) > 0 {
		query += fmt.Sprintf(" AND LOWER(status) = ANY($%d)", argIdx)
		lowered := make([]string, len(hints.Statuses))
		for i, s := range hints.Statuses {
			lowered[i] = strings.ToLower(s)
		}
		args = append(args, pq.Array(lowered))
		argIdx++
	}
	if hints.Search != nil && *hints.Search != "" {
		query += fmt.Sprintf(" AND (title ILIKE $%d OR content ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+*hints.Search+"%")
		argIdx++
	}
	if hints.DueBefore != nil {
		query += fmt.Sprintf(" AND due_date < $%d", argIdx)
		args = append(args, *hints.DueBefore)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if hints.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, hints.Limit)
		argIdx++
	}
	if hints.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, hints.Offset)
	}

	var rows []itemRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]*entities.Item, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
		ids = append(ids, row.ID)
	}

	activity, err := r.ListActivity(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		item.Activity = activity[item.ID]
	}

	return items, nil
}

func (r *ItemRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update item status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return entities.ErrItemNotFound
	}
	return nil
}

// MigrateStatus moves every item in oldStatus to newStatus, returning the
// number of items moved.
func (r *ItemRepository) MigrateStatus(ctx context.Context, oldStatus, newStatus string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE LOWER(status) = LOWER($1)`,
		oldStatus, newStatus,
	)
	if err != nil {
		return 0, fmt.Errorf("migrate item status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("migrate item status: %w", err)
	}
	return rows, nil
}

func (r *ItemRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := sqlx.GetContext(ctx, r.db, &count,
		`SELECT COUNT(*) FROM items WHERE LOWER(status) = LOWER($1)`, status)
	if err != nil {
		return 0, fmt.Errorf("count items by status: %w", err)
	}
	return count, nil
}

// AppendActivity inserts one entry into an item's append-only log.
func (r *ItemRepository) AppendActivity(ctx context.Context, entry *entities.ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO item_activity (id, item_id, action, details, author, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.ItemID, entry.Action, entry.Details, entry.Author, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ListActivity loads the activity logs for the given items in one query,
// keyed by item id. Entries come back in append order.
func (r *ItemRepository) ListActivity(ctx context.Context, itemIDs []string) (map[string][]entities.ActivityEntry, error) {
	grouped := make(map[string][]entities.ActivityEntry, len(itemIDs))
	if len(itemIDs) == 0 {
		return grouped, nil
	}

	var entries []entities.ActivityEntry
	err := sqlx.SelectContext(ctx, r.db, &entries,
		`SELECT id, item_id, action, details, author, created_at
		 FROM item_activity WHERE item_id = ANY($1) ORDER BY created_at ASC`,
		pq.Array(itemIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	for _, e := range entries {
		grouped[e.ItemID] = append(grouped[e.ItemID], e)
	}
	return grouped, nil
}
