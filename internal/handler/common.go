package handler // package handler implements the HTTP handlers of the API

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-booking/internal/repository"
	"github.com/iliyamo/hostel-booking/internal/settlement"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

// getUserID extracts the user_id set by JWTAuth and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func today() time.Time { return settlement.Day(time.Now()) }

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// errorStatus maps the sentinel errors of the settlement and repository
// packages to HTTP statuses.  Unknown errors map to 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, settlement.ErrRoomNotFound),
		errors.Is(err, settlement.ErrBookingNotFound),
		errors.Is(err, settlement.ErrProfileNotFound),
		errors.Is(err, settlement.ErrPaymentNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, settlement.ErrForbidden),
		errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, settlement.ErrInvalidMethod),
		errors.Is(err, settlement.ErrInvalidDates):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrRoomFull),
		errors.Is(err, settlement.ErrActiveBooking),
		errors.Is(err, settlement.ErrBookingNotPending),
		errors.Is(err, settlement.ErrNotCancellable),
		errors.Is(err, settlement.ErrInsufficientBalance),
		errors.Is(err, settlement.ErrInvalidTransition),
		errors.Is(err, settlement.ErrStudentHasActiveBooking),
		errors.Is(err, settlement.ErrStudentHasBalance),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ...}.  Infrastructure errors are
// logged and hidden behind a generic message.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	status := errorStatus(err)
	if status != http.StatusInternalServerError {
		return c.JSON(status, echo.Map{"error": err.Error()})
	}
	log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}
