package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/pkg/response"
)

type noticeService interface {
	List(ctx context.Context, query dto.NoticeQuery) ([]models.Notice, *models.Pagination, error)
	ListActive(ctx context.Context) ([]models.Notice, error)
	Get(ctx context.Context, id string) (*models.Notice, error)
	Create(ctx context.Context, req dto.NoticeRequest, actorID string) (*models.Notice, error)
	Update(ctx context.Context, id string, req dto.NoticeRequest) (*models.Notice, error)
	Delete(ctx context.Context, id string) error
}

// NoticeHandler exposes the notice board.
type NoticeHandler struct {
	notices noticeService
}

// NewNoticeHandler constructs NoticeHandler.
func NewNoticeHandler(notices noticeService) *NoticeHandler {
	return &NoticeHandler{notices: notices}
}

// List godoc
// @Summary List notices
// @Tags Notices
// @Produce json
// @Security BearerAuth
// @Param audience query string false "all, students or teachers"
// @Param active query bool false "Active state"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notices [get]
func (h *NoticeHandler) List(c *gin.Context) {
	var query dto.NoticeQuery
	if !bindQuery(c, &query) {
		return
	}
	notices, pagination, err := h.notices.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notices, pagination)
}

// Active godoc
// @Summary Notices visible now
// @Tags Notices
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notices/active [get]
func (h *NoticeHandler) Active(c *gin.Context) {
	notices, err := h.notices.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notices, nil)
}

// Get godoc
// @Summary Get notice
// @Tags Notices
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Router /notices/{id} [get]
func (h *NoticeHandler) Get(c *gin.Context) {
	notice, err := h.notices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notice, nil)
}

// Create godoc
// @Summary Publish notice
// @Tags Notices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.NoticeRequest true "Notice payload"
// @Success 201 {object} response.Envelope
// @Router /notices [post]
func (h *NoticeHandler) Create(c *gin.Context) {
	var req dto.NoticeRequest
	if !bindJSON(c, &req) {
		return
	}
	notice, err := h.notices.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, notice)
}

// Update godoc
// @Summary Update notice
// @Tags Notices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notice ID"
// @Param payload body dto.NoticeRequest true "Notice payload"
// @Success 200 {object} response.Envelope
// @Router /notices/{id} [put]
func (h *NoticeHandler) Update(c *gin.Context) {
	var req dto.NoticeRequest
	if !bindJSON(c, &req) {
		return
	}
	notice, err := h.notices.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notice, nil)
}

// Delete godoc
// @Summary Delete notice
// @Tags Notices
// @Security BearerAuth
// @Param id path string true "Notice ID"
// @Success 204
// @Router /notices/{id} [delete]
func (h *NoticeHandler) Delete(c *gin.Context) {
	if err := h.notices.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
