package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/response"
)

type absenceCreditService interface {
	Grant(ctx context.Context, req dto.GrantCreditRequest) (*models.AbsenceCredit, error)
	ListCredits(ctx context.Context, studentID string, availableOnly bool) ([]models.AbsenceCredit, error)
	ListUsages(ctx context.Context, studentID string) ([]models.CreditUsage, error)
	Use(ctx context.Context, creditID string, req dto.UseCreditRequest, actorID string) (*models.CreditUsage, error)
	ConfirmAttendance(ctx context.Context, usageID string, req dto.ConfirmAttendanceRequest) (*models.CreditUsage, error)
	RevokeUsage(ctx context.Context, usageID, actorID string) error
}

// AbsenceCreditHandler exposes make-up credits and their usages.
type AbsenceCreditHandler struct {
	credits absenceCreditService
}

// NewAbsenceCreditHandler constructs AbsenceCreditHandler.
func NewAbsenceCreditHandler(credits absenceCreditService) *AbsenceCreditHandler {
	return &AbsenceCreditHandler{credits: credits}
}

func requiredStudent(c *gin.Context) (string, bool) {
	studentID := strings.TrimSpace(c.Query("studentId"))
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return "", false
	}
	return studentID, true
}

// Grant godoc
// @Summary Grant an absence credit
// @Tags Credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GrantCreditRequest true "Credit payload"
// @Success 201 {object} response.Envelope
// @Router /credits [post]
func (h *AbsenceCreditHandler) Grant(c *gin.Context) {
	var req dto.GrantCreditRequest
	if !bindJSON(c, &req) {
		return
	}
	credit, err := h.credits.Grant(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, credit)
}

// List godoc
// @Summary List a student's credits
// @Tags Credits
// @Produce json
// @Security BearerAuth
// @Param studentId query string true "Student"
// @Param available query bool false "Only unconsumed, unexpired credits"
// @Success 200 {object} response.Envelope
// @Router /credits [get]
func (h *AbsenceCreditHandler) List(c *gin.Context) {
	studentID, ok := requiredStudent(c)
	if !ok {
		return
	}
	credits, err := h.credits.ListCredits(c.Request.Context(), studentID, c.Query("available") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credits, nil)
}

// Use godoc
// @Summary Consume a credit on a session
// @Tags Credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Credit ID"
// @Param payload body dto.UseCreditRequest true "Usage payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /credits/{id}/use [post]
func (h *AbsenceCreditHandler) Use(c *gin.Context) {
	var req dto.UseCreditRequest
	if !bindJSON(c, &req) {
		return
	}
	usage, err := h.credits.Use(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, usage)
}

// ListUsages godoc
// @Summary List a student's credit usages
// @Tags Credits
// @Produce json
// @Security BearerAuth
// @Param studentId query string true "Student"
// @Success 200 {object} response.Envelope
// @Router /credit-usages [get]
func (h *AbsenceCreditHandler) ListUsages(c *gin.Context) {
	studentID, ok := requiredStudent(c)
	if !ok {
		return
	}
	usages, err := h.credits.ListUsages(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, usages, nil)
}

// ConfirmAttendance godoc
// @Summary Confirm attendance of a make-up session
// @Tags Credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Usage ID"
// @Param payload body dto.ConfirmAttendanceRequest true "Attendance"
// @Success 200 {object} response.Envelope
// @Router /credit-usages/{id} [patch]
func (h *AbsenceCreditHandler) ConfirmAttendance(c *gin.Context) {
	var req dto.ConfirmAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	usage, err := h.credits.ConfirmAttendance(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, usage, nil)
}

// RevokeUsage godoc
// @Summary Undo a credit usage
// @Description Deletes the usage and makes the credit available again.
// @Tags Credits
// @Security BearerAuth
// @Param id path string true "Usage ID"
// @Success 204
// @Router /credit-usages/{id} [delete]
func (h *AbsenceCreditHandler) RevokeUsage(c *gin.Context) {
	if err := h.credits.RevokeUsage(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
