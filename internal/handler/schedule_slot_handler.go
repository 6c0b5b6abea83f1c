package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/pkg/export"
	"github.com/noah-isme/studio-agenda-api/pkg/response"
)

type scheduleSlotService interface {
	List(ctx context.Context, query dto.ScheduleSlotQuery) ([]models.ScheduleSlotDetail, error)
	Get(ctx context.Context, id string) (*models.ScheduleSlotDetail, error)
	Create(ctx context.Context, req dto.ScheduleSlotRequest) (*models.ScheduleSlot, error)
	Update(ctx context.Context, id string, req dto.ScheduleSlotRequest) (*models.ScheduleSlot, error)
	SetFlags(ctx context.Context, id string, req dto.SlotFlagsRequest) (*models.ScheduleSlotDetail, error)
	Remove(ctx context.Context, id string) (bool, error)
	Occupancy(ctx context.Context, id string) (*models.Occupancy, error)
	Roster(ctx context.Context, id, rawFormat string) ([]byte, export.Format, error)
}

// ScheduleSlotHandler exposes the weekly grid.
type ScheduleSlotHandler struct {
	slots scheduleSlotService
}

// NewScheduleSlotHandler constructs ScheduleSlotHandler.
func NewScheduleSlotHandler(slots scheduleSlotService) *ScheduleSlotHandler {
	return &ScheduleSlotHandler{slots: slots}
}

// List godoc
// @Summary List schedule slots
// @Tags ScheduleSlots
// @Produce json
// @Security BearerAuth
// @Param teacherId query string false "Teacher"
// @Param modalityId query string false "Modality"
// @Param dayOfWeek query int false "0 = Sunday"
// @Param active query bool false "Active state"
// @Success 200 {object} response.Envelope
// @Router /schedule-slots [get]
func (h *ScheduleSlotHandler) List(c *gin.Context) {
	var query dto.ScheduleSlotQuery
	if !bindQuery(c, &query) {
		return
	}
	slots, err := h.slots.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Get godoc
// @Summary Get schedule slot
// @Tags ScheduleSlots
// @Produce json
// @Security BearerAuth
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-slots/{id} [get]
func (h *ScheduleSlotHandler) Get(c *gin.Context) {
	slot, err := h.slots.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Create godoc
// @Summary Create schedule slot
// @Tags ScheduleSlots
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ScheduleSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule-slots [post]
func (h *ScheduleSlotHandler) Create(c *gin.Context) {
	var req dto.ScheduleSlotRequest
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.slots.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Update godoc
// @Summary Update schedule slot
// @Tags ScheduleSlots
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Slot ID"
// @Param payload body dto.ScheduleSlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Router /schedule-slots/{id} [put]
func (h *ScheduleSlotHandler) Update(c *gin.Context) {
	var req dto.ScheduleSlotRequest
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.slots.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// SetFlags godoc
// @Summary Update slot markers
// @Tags ScheduleSlots
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Slot ID"
// @Param payload body dto.SlotFlagsRequest true "Flags"
// @Success 200 {object} response.Envelope
// @Router /schedule-slots/{id}/flags [patch]
func (h *ScheduleSlotHandler) SetFlags(c *gin.Context) {
	var req dto.SlotFlagsRequest
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.slots.SetFlags(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Delete godoc
// @Summary Remove schedule slot
// @Description Slots referenced by enrollments or change requests are deactivated instead of deleted.
// @Tags ScheduleSlots
// @Produce json
// @Security BearerAuth
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-slots/{id} [delete]
func (h *ScheduleSlotHandler) Delete(c *gin.Context) {
	deleted, err := h.slots.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted, "deactivated": !deleted}, nil)
}

// Occupancy godoc
// @Summary Seats left on a slot
// @Tags ScheduleSlots
// @Produce json
// @Security BearerAuth
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-slots/{id}/occupancy [get]
func (h *ScheduleSlotHandler) Occupancy(c *gin.Context) {
	occupancy, err := h.slots.Occupancy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occupancy, nil)
}

// Roster godoc
// @Summary Download slot roster
// @Tags ScheduleSlots
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Slot ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /schedule-slots/{id}/roster [get]
func (h *ScheduleSlotHandler) Roster(c *gin.Context) {
	id := c.Param("id")
	content, format, err := h.slots.Roster(c.Request.Context(), id, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=roster-%s.%s", id, format))
	c.Data(http.StatusOK, format.ContentType(), content)
}
