package transport

import (
	"net/http"

	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/ds124wfegd/gymbooker/internal/service"
	"github.com/ds124wfegd/gymbooker/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookingService service.BookingService
}

func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// Book резервирует место для текущего пользователя
func (h *BookingHandler) Book(c *gin.Context) {
	var req service.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	req.UserID = c.GetString(middleware.UserIDKey)

	result, err := h.bookingService.Book(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Cancel accepts class_id, date and time as query parameters so reminders
// can be cleared for a reservation that is already gone.
func (h *BookingHandler) Cancel(c *gin.Context) {
	req := service.CancelRequest{
		ReservationID: c.Param("id"),
		UserID:        c.GetString(middleware.UserIDKey),
		ClassID:       c.Query("class_id"),
		Date:          c.Query("date"),
		Time:          c.Query("time"),
	}

	if err := h.bookingService.Cancel(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reservation cancelled"})
}

func (h *BookingHandler) ListMine(c *gin.Context) {
	reservations, err := h.bookingService.ListUserReservations(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reservations)
}

func (h *BookingHandler) Audit(c *gin.Context) {
	drift, err := h.bookingService.Audit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if drift == nil {
		drift = []entity.OccupancyDrift{}
	}

	c.JSON(http.StatusOK, gin.H{"class_id": c.Param("id"), "drift": drift})
}
