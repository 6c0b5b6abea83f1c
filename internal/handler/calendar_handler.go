package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/pkg/response"
)

type calendarService interface {
	ListHolidays(ctx context.Context, query dto.CalendarQuery) ([]models.Holiday, error)
	CreateHoliday(ctx context.Context, req dto.HolidayRequest) (*models.Holiday, error)
	DeleteHoliday(ctx context.Context, id string) error
	ListBlockedSlots(ctx context.Context, query dto.CalendarQuery) ([]models.BlockedSlot, error)
	BlockSlot(ctx context.Context, req dto.BlockedSlotRequest, actorID string) (*models.BlockedSlot, error)
	UnblockSlot(ctx context.Context, id string) error
}

// CalendarHandler exposes holidays and blocked slot occurrences.
type CalendarHandler struct {
	calendar calendarService
}

// NewCalendarHandler constructs CalendarHandler.
func NewCalendarHandler(calendar calendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

// ListHolidays godoc
// @Summary List holidays
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /holidays [get]
func (h *CalendarHandler) ListHolidays(c *gin.Context) {
	var query dto.CalendarQuery
	if !bindQuery(c, &query) {
		return
	}
	holidays, err := h.calendar.ListHolidays(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, holidays, nil)
}

// CreateHoliday godoc
// @Summary Create holiday
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.HolidayRequest true "Holiday payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /holidays [post]
func (h *CalendarHandler) CreateHoliday(c *gin.Context) {
	var req dto.HolidayRequest
	if !bindJSON(c, &req) {
		return
	}
	holiday, err := h.calendar.CreateHoliday(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, holiday)
}

// DeleteHoliday godoc
// @Summary Delete holiday
// @Tags Calendar
// @Security BearerAuth
// @Param id path string true "Holiday ID"
// @Success 204
// @Router /holidays/{id} [delete]
func (h *CalendarHandler) DeleteHoliday(c *gin.Context) {
	if err := h.calendar.DeleteHoliday(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListBlockedSlots godoc
// @Summary List blocked slot occurrences
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Param slotId query string false "Slot"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /blocked-slots [get]
func (h *CalendarHandler) ListBlockedSlots(c *gin.Context) {
	var query dto.CalendarQuery
	if !bindQuery(c, &query) {
		return
	}
	blocked, err := h.calendar.ListBlockedSlots(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocked, nil)
}

// BlockSlot godoc
// @Summary Block one occurrence of a slot
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BlockedSlotRequest true "Blocked slot payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /blocked-slots [post]
func (h *CalendarHandler) BlockSlot(c *gin.Context) {
	var req dto.BlockedSlotRequest
	if !bindJSON(c, &req) {
		return
	}
	blocked, err := h.calendar.BlockSlot(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, blocked)
}

// UnblockSlot godoc
// @Summary Remove a blocked occurrence
// @Tags Calendar
// @Security BearerAuth
// @Param id path string true "Blocked slot ID"
// @Success 204
// @Router /blocked-slots/{id} [delete]
func (h *CalendarHandler) UnblockSlot(c *gin.Context) {
	if err := h.calendar.UnblockSlot(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
