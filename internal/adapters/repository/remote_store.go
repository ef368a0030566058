package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pipeboard/core/internal/domain/entities"
	"github.com/pipeboard/core/internal/infrastructure/database"
	"github.com/pipeboard/core/internal/ports"
)

// RemoteStoreImpl implements the RemoteStore contract the board session
// reconciles against, composed from the item and column repositories.
// Multi-table mutations run inside one transaction: a status change writes
// its activity entry with it, and a column rename migrates item statuses
// with it, so the remote side can never observe the pieces disagreeing.
type RemoteStoreImpl struct {
	db      *database.DB
	items   *ItemRepository
	columns *ColumnRepository
}

// NewRemoteStore creates a remote store backed by Postgres.
func NewRemoteStore(db *database.DB) ports.RemoteStore {
	return &RemoteStoreImpl{
		db:      db,
		items:   NewItemRepository(db.DB),
		columns: NewColumnRepository(db.DB),
	}
}

func (s *RemoteStoreImpl) ListItems(ctx context.Context, hints ports.ListHints) ([]*entities.Item, error) {
	return s.items.List(ctx, hints)
}

func (s *RemoteStoreImpl) UpdateItemStatus(ctx context.Context, itemID, newStatus string, entry *entities.ActivityEntry) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		items := s.items.withTx(tx)

		if err := items.UpdateStatus(ctx, itemID, newStatus); err != nil {
			return err
		}
		if entry != nil {
			if err := items.AppendActivity(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *RemoteStoreImpl) ListColumns(ctx context.Context) ([]entities.Column, error) {
	return s.columns.List(ctx)
}

func (s *RemoteStoreImpl) CreateColumn(ctx context.Context, column *entities.Column) error {
	return s.columns.Create(ctx, column)
}

func (s *RemoteStoreImpl) RenameColumn(ctx context.Context, id uuid.UUID, newName string) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var oldName string
		if err := tx.GetContext(ctx, &oldName,
			`SELECT name FROM board_columns WHERE id = $1 FOR UPDATE`, id); err != nil {
			return fmt.Errorf("lock column for rename: %w", err)
		}

		if err := s.columns.withTx(tx).Rename(ctx, id, newName); err != nil {
			return err
		}

		if _, err := s.items.withTx(tx).MigrateStatus(ctx, oldName, newName); err != nil {
			return err
		}

		return nil
	})
}

func (s *RemoteStoreImpl) DeleteColumn(ctx context.Context, id uuid.UUID) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var name string
		if err := tx.GetContext(ctx, &name,
			`SELECT name FROM board_columns WHERE id = $1 FOR UPDATE`, id); err != nil {
			return fmt.Errorf("lock column for delete: %w", err)
		}

		inUse, err := s.items.withTx(tx).CountByStatus(ctx, name)
		if err != nil {
			return err
		}
		if inUse > 0 {
			return entities.ErrColumnInUse
		}

		return s.columns.withTx(tx).Delete(ctx, id)
	})
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
