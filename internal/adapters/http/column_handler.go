package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pipeboard/core/internal/infrastructure/logger"
	"github.com/pipeboard/core/internal/ports"
)

// ColumnHandler handles column lifecycle requests
type ColumnHandler struct {
	boardService ports.BoardService
	logger       *logger.Logger
}

// NewColumnHandler creates a new column handler
func NewColumnHandler(boardService ports.BoardService, logger *logger.Logger) *ColumnHandler {
	return &ColumnHandler{
		boardService: boardService,
		logger:       logger,
	}
}

// ListColumns handles listing the column registry in lane order
func (h *ColumnHandler) ListColumns(c echo.Context) error {
	return c.JSON(http.StatusOK, h.boardService.Columns())
}

// CreateColumn handles creating a custom column
func (h *ColumnHandler) CreateColumn(c echo.Context) error {
	var req ports.CreateColumnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	column, err := h.boardService.RequestCreateColumn(c.Request().Context(), req.Name)
	if err != nil {
		h.logger.Warn("Create column failed", "name", req.Name, "error", err)
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, column)
}

// RenameColumn handles renaming a custom column
func (h *ColumnHandler) RenameColumn(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid column ID")
	}

	var req ports.RenameColumnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.boardService.RequestRenameColumn(c.Request().Context(), id, req.Name); err != nil {
		h.logger.Warn("Rename column failed", "column_id", id, "error", err)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Column renamed"})
}

// DeleteColumn handles deleting a custom column
func (h *ColumnHandler) DeleteColumn(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid column ID")
	}

	if err := h.boardService.RequestDeleteColumn(c.Request().Context(), id); err != nil {
		h.logger.Warn("Delete column failed", "column_id", id, "error", err)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Column deleted"})
}
