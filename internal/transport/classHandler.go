package transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/ds124wfegd/gymbooker/internal/service"
	"github.com/ds124wfegd/gymbooker/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ClassHandler struct {
	classService service.ClassService
	userService  service.UserService
}

func NewClassHandler(classService service.ClassService, userService service.UserService) *ClassHandler {
	return &ClassHandler{classService: classService, userService: userService}
}

func (h *ClassHandler) ListClasses(c *gin.Context) {
	classes, err := h.classService.ListClasses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, classes)
}

func (h *ClassHandler) GetClass(c *gin.Context) {
	class, err := h.classService.GetClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, class)
}

// Availability показывает заполненность слотов. Полные слоты видны только администраторам
func (h *ClassHandler) Availability(c *gin.Context) {
	ctx := c.Request.Context()

	viewer, err := h.userService.GetUser(ctx, c.GetString(middleware.UserIDKey))
	if err != nil && !errors.Is(err, entity.ErrUserNotFound) {
		respondError(c, err)
		return
	}

	availability, err := h.classService.Availability(ctx, c.Param("id"), viewer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

func (h *ClassHandler) CreateClass(c *gin.Context) {
	var req service.ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	class, err := h.classService.CreateClass(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, class)
}

func (h *ClassHandler) UpdateClass(c *gin.Context) {
	var req service.ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	class, err := h.classService.UpdateClass(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, class)
}

func (h *ClassHandler) DeleteClass(c *gin.Context) {
	if err := h.classService.DeleteClass(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ClassHandler) Roster(c *gin.Context) {
	slot, err := entity.NewSlot(c.Query("date"), c.Query("time"))
	if err != nil {
		respondError(c, err)
		return
	}

	roster, err := h.classService.Roster(c.Request.Context(), c.Param("id"), slot)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"class_id": c.Param("id"),
		"slot":     slot,
		"count":    len(roster),
		"entries":  roster,
	})
}

// ExportRoster отдаёт список записавшихся в формате xlsx
func (h *ClassHandler) ExportRoster(c *gin.Context) {
	id := c.Param("id")
	data, err := h.classService.ExportRoster(c.Request.Context(), id, c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="roster-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}
