package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/pkg/response"
)

type modalityService interface {
	List(ctx context.Context, activeOnly bool) ([]models.Modality, error)
	Get(ctx context.Context, id string) (*models.Modality, error)
	Create(ctx context.Context, req dto.ModalityRequest) (*models.Modality, error)
	Update(ctx context.Context, id string, req dto.ModalityRequest) (*models.Modality, error)
	Deactivate(ctx context.Context, id string) error
}

// ModalityHandler exposes the class-type catalogue.
type ModalityHandler struct {
	modalities modalityService
}

// NewModalityHandler constructs ModalityHandler.
func NewModalityHandler(modalities modalityService) *ModalityHandler {
	return &ModalityHandler{modalities: modalities}
}

// List godoc
// @Summary List modalities
// @Tags Modalities
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active modalities"
// @Success 200 {object} response.Envelope
// @Router /modalities [get]
func (h *ModalityHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	modalities, err := h.modalities.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modalities, nil)
}

// Get godoc
// @Summary Get modality
// @Tags Modalities
// @Produce json
// @Security BearerAuth
// @Param id path string true "Modality ID"
// @Success 200 {object} response.Envelope
// @Router /modalities/{id} [get]
func (h *ModalityHandler) Get(c *gin.Context) {
	modality, err := h.modalities.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modality, nil)
}

// Create godoc
// @Summary Create modality
// @Tags Modalities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ModalityRequest true "Modality payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /modalities [post]
func (h *ModalityHandler) Create(c *gin.Context) {
	var req dto.ModalityRequest
	if !bindJSON(c, &req) {
		return
	}
	modality, err := h.modalities.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, modality)
}

// Update godoc
// @Summary Update modality
// @Tags Modalities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Modality ID"
// @Param payload body dto.ModalityRequest true "Modality payload"
// @Success 200 {object} response.Envelope
// @Router /modalities/{id} [put]
func (h *ModalityHandler) Update(c *gin.Context) {
	var req dto.ModalityRequest
	if !bindJSON(c, &req) {
		return
	}
	modality, err := h.modalities.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modality, nil)
}

// Delete godoc
// @Summary Deactivate modality
// @Tags Modalities
// @Security BearerAuth
// @Param id path string true "Modality ID"
// @Success 204
// @Router /modalities/{id} [delete]
func (h *ModalityHandler) Delete(c *gin.Context) {
	if err := h.modalities.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
