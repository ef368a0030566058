package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pipeboard/core/internal/domain/entities"
)

// ColumnRepository reads and mutates the board_columns table. Like the item
// repository it rebinds to a transaction via withTx.
type ColumnRepository struct {
	db sqlx.ExtContext
}

// NewColumnRepository creates a new column repository.
func NewColumnRepository(db *sqlx.DB) *ColumnRepository {
	return &ColumnRepository{db: db}
}

func (r *ColumnRepository) withTx(tx *sqlx.Tx) *ColumnRepository {
	return &ColumnRepository{db: tx}
}

func (r *ColumnRepository) Create(ctx context.Context, column *entities.Column) error {
	query := `
		INSERT INTO board_columns (id, name, position)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	if column.ID == uuid.Nil {
		column.ID = uuid.New()
	}

	err := r.db.QueryRowxContext(ctx, query,
		column.ID, column.Name, column.Position,
	).Scan(&column.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return entities.ErrDuplicateColumn
		}
		return fmt.Errorf("create column: %w", err)
	}

	return nil
}

func (r *ColumnRepository) List(ctx context.Context) ([]entities.Column, error) {
	query := `SELECT id, name, position, created_at FROM board_columns ORDER BY position ASC`

	var columns []entities.Column
	if err := sqlx.SelectContext(ctx, r.db, &columns, query); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	return columns, nil
}

func (r *ColumnRepository) Rename(ctx context.Context, id uuid.UUID, newName string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE board_columns SET name = $2 WHERE id = $1`, id, newName)
	if err != nil {
		if isUniqueViolation(err) {
			return entities.ErrDuplicateColumn
		}
		return fmt.Errorf("rename column: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return entities.ErrColumnNotFound
	}
	return nil
}

func (r *ColumnRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM board_columns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return entities.ErrColumnNotFound
	}
	return nil
}
