package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipeboard/core/internal/domain/entities"
)

// MessageResponse is a simple message payload
type MessageResponse struct {
	Message string `json:"message"`
}

// domainError maps domain sentinel errors to HTTP errors. Everything here
// is a recoverable, user-visible failure; nothing aborts the session.
func domainError(err error) error {
	switch {
	case errors.Is(err, entities.ErrItemNotFound),
		errors.Is(err, entities.ErrColumnNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrDuplicateColumn),
		errors.Is(err, entities.ErrColumnInUse):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, entities.ErrProtectedColumn):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, entities.ErrInvalidColumnName),
		errors.Is(err, entities.ErrInvalidPriority),
		errors.Is(err, entities.ErrInvalidItemKind):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrTransitionRejected),
		errors.Is(err, entities.ErrTransitionStale):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal error")
	}
}
