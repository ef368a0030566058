package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pipeboard/core/internal/domain/entities"
)

// RequestCreateColumn adds a new lane to the board. Creation is rejected
// when the name collides case-insensitively with an existing column. No
// items are affected.
func (s *BoardSession) RequestCreateColumn(ctx context.Context, name string) (*entities.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("column name is empty: %w", entities.ErrInvalidColumnName)
	}

	s.mu.Lock()
	if _, exists := s.resolveColumnLocked(name); exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("column %q: %w", name, entities.ErrDuplicateColumn)
	}
	position := len(s.columns)
	s.mu.Unlock()

	column := &entities.Column{
		ID:        uuid.New(),
		Name:      name,
		Position:  position,
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateColumn(ctx, column); err != nil {
		s.metrics.ColumnOpsFailed.Inc()
		return nil, fmt.Errorf("create column: %w", err)
	}

	s.mu.Lock()
	// Re-check: another handler may have raced the remote call. The loser
	// undoes its remote create so the stores keep agreeing.
	if _, exists := s.resolveColumnLocked(name); exists {
		s.mu.Unlock()
		if delErr := s.store.DeleteColumn(ctx, column.ID); delErr != nil {
			s.logger.Warn("Failed to undo raced column create", "column_id", column.ID, "name", name, "error", delErr)
		}
		s.metrics.ColumnOpsFailed.Inc()
		return nil, fmt.Errorf("column %q: %w", name, entities.ErrDuplicateColumn)
	}
	s.columns = append(s.columns, *column)
	s.mu.Unlock()

	s.metrics.ColumnsCreated.Inc()
	s.logger.Info("Column created", "column_id", column.ID, "name", column.Name)
	return column, nil
}

// RequestRenameColumn renames a custom lane. Default columns are
// protected. Items referencing the old name are migrated to the new name
// atomically with the rename, under the session lock, so no projection can
// observe the registry and the item store disagreeing.
func (s *BoardSession) RequestRenameColumn(ctx context.Context, id uuid.UUID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("column name is empty: %w", entities.ErrInvalidColumnName)
	}

	s.mu.Lock()
	col, ok := s.columnByIDLocked(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("column %s: %w", id, entities.ErrColumnNotFound)
	}
	if col.IsDefault(s.opts.ProtectedColumns) {
		s.mu.Unlock()
		return fmt.Errorf("column %q: %w", col.Name, entities.ErrProtectedColumn)
	}
	if existing, exists := s.resolveColumnLocked(newName); exists && existing.ID != id {
		s.mu.Unlock()
		return fmt.Errorf("column %q: %w", newName, entities.ErrDuplicateColumn)
	}
	oldName := col.Name
	s.mu.Unlock()

	if err := s.store.RenameColumn(ctx, id, newName); err != nil {
		s.metrics.ColumnOpsFailed.Inc()
		return fmt.Errorf("rename column: %w", err)
	}
	s.invalidateItemCache(ctx)

	s.mu.Lock()
	if col, ok := s.columnByIDLocked(id); ok {
		col.Name = newName
	}
	migrated := 0
	for _, item := range s.items {
		if item.InStatus(oldName) {
			item.Status = newName
			migrated++
		}
	}
	s.mu.Unlock()

	s.metrics.ColumnsRenamed.Inc()
	s.logger.Info("Column renamed", "column_id", id, "old_name", oldName, "new_name", newName, "items_migrated", migrated)
	return nil
}

// RequestDeleteColumn removes a custom lane. Default columns are
// protected, and deletion is blocked while any item still references the
// column, so no item is ever orphaned into an undefined status.
func (s *BoardSession) RequestDeleteColumn(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	col, ok := s.columnByIDLocked(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("column %s: %w", id, entities.ErrColumnNotFound)
	}
	if col.IsDefault(s.opts.ProtectedColumns) {
		s.mu.Unlock()
		return fmt.Errorf("column %q: %w", col.Name, entities.ErrProtectedColumn)
	}
	for _, item := range s.items {
		if item.InStatus(col.Name) {
			s.mu.Unlock()
			return fmt.Errorf("column %q: %w", col.Name, entities.ErrColumnInUse)
		}
	}
	name := col.Name
	s.mu.Unlock()

	if err := s.store.DeleteColumn(ctx, id); err != nil {
		s.metrics.ColumnOpsFailed.Inc()
		return fmt.Errorf("delete column: %w", err)
	}

	s.mu.Lock()
	for i := range s.columns {
		if s.columns[i].ID == id {
			s.columns = append(s.columns[:i], s.columns[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.metrics.ColumnsDeleted.Inc()
	s.logger.Info("Column deleted", "column_id", id, "name", name)
	return nil
}
