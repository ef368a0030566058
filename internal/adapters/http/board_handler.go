package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pipeboard/core/internal/domain/board"
	"github.com/pipeboard/core/internal/domain/entities"
	"github.com/pipeboard/core/internal/infrastructure/logger"
	"github.com/pipeboard/core/internal/ports"
)

// BoardHandler handles board projection and item requests
type BoardHandler struct {
	boardService ports.BoardService
	logger       *logger.Logger
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(boardService ports.BoardService, logger *logger.Logger) *BoardHandler {
	return &BoardHandler{
		boardService: boardService,
		logger:       logger,
	}
}

// GetBoard handles the board projection request. Filter criteria, sort key
// and direction, and per-column pagination all arrive as query parameters.
func (h *BoardHandler) GetBoard(c echo.Context) error {
	req := ports.BoardRequest{
		Criteria:      criteriaFromQuery(c),
		SortKey:       board.SortKey(c.QueryParam("sort")),
		SortDirection: board.SortDirection(c.QueryParam("dir")),
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil && limit > 0 {
		req.PerColumnLimit = limit
	}
	if offset, err := strconv.Atoi(c.QueryParam("offset")); err == nil && offset > 0 {
		req.PerColumnOffset = offset
	}

	return c.JSON(http.StatusOK, h.boardService.VisibleBoard(req))
}

// ListItems handles the flat filtered item listing
func (h *BoardHandler) ListItems(c echo.Context) error {
	items := h.boardService.Items(
		criteriaFromQuery(c),
		board.SortKey(c.QueryParam("sort")),
		board.SortDirection(c.QueryParam("dir")),
	)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

// GetItem handles getting a single item by id
func (h *BoardHandler) GetItem(c echo.Context) error {
	item, err := h.boardService.Item(c.Param("id"))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// ChangeStatus handles a status change request for an item. The change is
// applied optimistically; a remote rejection rolls it back and surfaces as
// a conflict, never as a fatal error.
func (h *BoardHandler) ChangeStatus(c echo.Context) error {
	var req ports.StatusChangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	source := entities.TransitionSource(req.Source)
	if source == "" {
		source = entities.TransitionSourceExplicit
	}

	itemID := c.Param("id")
	err := h.boardService.RequestStatusChange(c.Request().Context(), itemID, req.NewStatus, source)
	if err != nil {
		h.logger.Warn("Status change failed", "item_id", itemID, "target", req.NewStatus, "error", err)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Status updated"})
}

// GetNotices drains the pending user-visible notices (rolled-back
// transitions and the like)
func (h *BoardHandler) GetNotices(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notices": h.boardService.Notices(),
	})
}

// Refresh handles reloading the board from the remote store
func (h *BoardHandler) Refresh(c echo.Context) error {
	if err := h.boardService.Refresh(c.Request().Context()); err != nil {
		h.logger.Error("Board refresh failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to refresh board")
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Board refreshed"})
}

// criteriaFromQuery builds filter criteria from query parameters. Absent
// parameters constrain nothing.
func criteriaFromQuery(c echo.Context) board.Criteria {
	criteria := board.Criteria{
		Statuses:   splitParam(c.QueryParam("statuses")),
		Assignees:  splitParam(c.QueryParam("assignees")),
		Categories: splitParam(c.QueryParam("categories")),
		Tags:       splitParam(c.QueryParam("tags")),
		SearchTerm: c.QueryParam("search"),
	}

	for _, k := range splitParam(c.QueryParam("kinds")) {
		criteria.Kinds = append(criteria.Kinds, entities.ItemKind(k))
	}
	for _, p := range splitParam(c.QueryParam("priorities")) {
		criteria.Priorities = append(criteria.Priorities, entities.Priority(p))
	}

	if v := c.QueryParam("has_media"); v != "" {
		b := v == "true" || v == "1"
		criteria.HasMedia = &b
	}
	if v := c.QueryParam("has_comments"); v != "" {
		b := v == "true" || v == "1"
		criteria.HasComments = &b
	}

	start, startErr := time.Parse(time.RFC3339, c.QueryParam("date_start"))
	end, endErr := time.Parse(time.RFC3339, c.QueryParam("date_end"))
	if startErr == nil && endErr == nil {
		criteria.DateRange = &board.DateRange{Start: start, End: end}
	}

	return criteria
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
