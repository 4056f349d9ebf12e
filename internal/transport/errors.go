package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/ds124wfegd/gymbooker/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidInput), errors.Is(err, entity.ErrTimeParse):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrOutsideHorizon), errors.Is(err, entity.ErrSlotNotScheduled):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrDuplicateBooking),
		errors.Is(err, entity.ErrCapacityExceeded),
		errors.Is(err, entity.ErrCapacityBelowOccupancy),
		errors.Is(err, entity.ErrSlotHasReservations),
		errors.Is(err, entity.ErrClassHasReservations):
		return http.StatusConflict
	case errors.Is(err, entity.ErrClassNotFound),
		errors.Is(err, entity.ErrReservationNotFound),
		errors.Is(err, entity.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrAdminCannotBook), errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrTransientStorage):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logrus.WithField("path", c.FullPath()).Errorf("Request error: %v", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
