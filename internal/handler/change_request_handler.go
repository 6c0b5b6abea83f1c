package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/response"
)

type changeRequestService interface {
	Create(ctx context.Context, req dto.CreateChangeRequest, actorID string) (*models.ChangeRequest, error)
	Get(ctx context.Context, id string) (*models.ChangeRequest, error)
	List(ctx context.Context, query dto.ChangeRequestQuery) ([]models.ChangeRequest, error)
	Approve(ctx context.Context, id, approverID string) (*models.ChangeRequest, error)
	Reject(ctx context.Context, id, approverID string, req dto.RejectChangeRequest) (*models.ChangeRequest, error)
	Cancel(ctx context.Context, id, actorID string) error
}

// ChangeRequestHandler exposes the reschedule workflow.
type ChangeRequestHandler struct {
	service changeRequestService
	enabled bool
}

// NewChangeRequestHandler constructs the handler. When enabled is false every
// endpoint answers SERVICE_DISABLED.
func NewChangeRequestHandler(svc changeRequestService, enabled bool) *ChangeRequestHandler {
	return &ChangeRequestHandler{service: svc, enabled: enabled}
}

func (h *ChangeRequestHandler) available(c *gin.Context) bool {
	if !h.enabled {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceDisabled, "change requests are disabled"))
		return false
	}
	return true
}

// Create godoc
// @Summary Propose a slot change
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateChangeRequest true "Change request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /change-requests [post]
func (h *ChangeRequestHandler) Create(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var req dto.CreateChangeRequest
	if !bindJSON(c, &req) {
		return
	}
	request, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List change requests
// @Tags ChangeRequests
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Student"
// @Param status query string false "Comma separated statuses"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /change-requests [get]
func (h *ChangeRequestHandler) List(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var query dto.ChangeRequestQuery
	if !bindQuery(c, &query) {
		return
	}
	requests, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get a change request
// @Tags ChangeRequests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Change request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /change-requests/{id} [get]
func (h *ChangeRequestHandler) Get(c *gin.Context) {
	if !h.available(c) {
		return
	}
	request, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Approve godoc
// @Summary Approve a pending change request
// @Description Moves the student to the target slot in one transaction.
// @Tags ChangeRequests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Change request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /change-requests/{id}/approve [post]
func (h *ChangeRequestHandler) Approve(c *gin.Context) {
	if !h.available(c) {
		return
	}
	request, err := h.service.Approve(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject godoc
// @Summary Reject a pending change request
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Change request ID"
// @Param payload body dto.RejectChangeRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /change-requests/{id}/reject [post]
func (h *ChangeRequestHandler) Reject(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var req dto.RejectChangeRequest
	if !bindJSON(c, &req) {
		return
	}
	request, err := h.service.Reject(c.Request.Context(), c.Param("id"), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Cancel godoc
// @Summary Cancel a change request
// @Description Deletes the request. An approved request is compensated by restoring the source enrollment.
// @Tags ChangeRequests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Change request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /change-requests/{id} [delete]
func (h *ChangeRequestHandler) Cancel(c *gin.Context) {
	if !h.available(c) {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CancelChangeRequestResponse{Success: true}, nil)
}
