package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/internal/service"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/export"
)

type slotServiceMock struct {
	scheduleSlotService
	removed    bool
	lastFormat string
}

func (m *slotServiceMock) Remove(ctx context.Context, id string) (bool, error) {
	return m.removed, nil
}

func (m *slotServiceMock) Roster(ctx context.Context, id, rawFormat string) ([]byte, export.Format, error) {
	m.lastFormat = rawFormat
	return []byte("Student,Email,Enrolled since\n"), export.FormatCSV, nil
}

func TestScheduleSlotHandlerRoster(t *testing.T) {
	mockSvc := &slotServiceMock{}
	handler := NewScheduleSlotHandler(mockSvc)
	c, w := newTestContext(http.MethodGet, "/schedule-slots/A/roster?format=csv", "")
	c.Params = gin.Params{{Key: "id", Value: "A"}}
	handler.Roster(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mockSvc.lastFormat)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "roster-A.csv")
	assert.Contains(t, w.Body.String(), "Student,Email")
}

func TestScheduleSlotHandlerDeleteReportsMode(t *testing.T) {
	handler := NewScheduleSlotHandler(&slotServiceMock{removed: false})
	c, w := newTestContext(http.MethodDelete, "/schedule-slots/A", "")
	c.Params = gin.Params{{Key: "id", Value: "A"}}
	handler.Delete(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, data["deleted"])
	assert.Equal(t, true, data["deactivated"])
}

type creditServiceMock struct {
	absenceCreditService
	lastStudent   string
	lastAvailable bool
	lastUse       dto.UseCreditRequest
	lastActor     string
	lastRevoked   string
}

func (m *creditServiceMock) RevokeUsage(ctx context.Context, usageID, actorID string) error {
	m.lastRevoked = usageID
	m.lastActor = actorID
	return nil
}

func (m *creditServiceMock) ListCredits(ctx context.Context, studentID string, availableOnly bool) ([]models.AbsenceCredit, error) {
	m.lastStudent = studentID
	m.lastAvailable = availableOnly
	return []models.AbsenceCredit{}, nil
}

func (m *creditServiceMock) Use(ctx context.Context, creditID string, req dto.UseCreditRequest, actorID string) (*models.CreditUsage, error) {
	m.lastUse = req
	m.lastActor = actorID
	return &models.CreditUsage{ID: "u1", CreditID: creditID}, nil
}

func TestAbsenceCreditHandlerListRequiresStudent(t *testing.T) {
	mockSvc := &creditServiceMock{}
	handler := NewAbsenceCreditHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/credits", "")
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/credits?studentId=S&available=true", "")
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S", mockSvc.lastStudent)
	assert.True(t, mockSvc.lastAvailable)
}

func TestAbsenceCreditHandlerUse(t *testing.T) {
	mockSvc := &creditServiceMock{}
	handler := NewAbsenceCreditHandler(mockSvc)
	c, w := newTestContext(http.MethodPost, "/credits/c1/use", `{"sessionDate":"2024-03-11","slotId":"A"}`)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	handler.Use(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "2024-03-11", mockSvc.lastUse.SessionDate)
	require.NotNil(t, mockSvc.lastUse.SlotID)
	assert.Equal(t, "A", *mockSvc.lastUse.SlotID)
	assert.Equal(t, "admin", mockSvc.lastActor)
}

func TestAbsenceCreditHandlerRevokeUsagePassesActor(t *testing.T) {
	mockSvc := &creditServiceMock{}
	handler := NewAbsenceCreditHandler(mockSvc)
	c, _ := newTestContext(http.MethodDelete, "/credit-usages/u1", "")
	c.Params = gin.Params{{Key: "id", Value: "u1"}}
	handler.RevokeUsage(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "u1", mockSvc.lastRevoked)
	assert.Equal(t, "admin", mockSvc.lastActor)
}

type calendarServiceMock struct {
	calendarService
	lastQuery dto.CalendarQuery
}

func (m *calendarServiceMock) ListBlockedSlots(ctx context.Context, query dto.CalendarQuery) ([]models.BlockedSlot, error) {
	m.lastQuery = query
	return []models.BlockedSlot{}, nil
}

func TestCalendarHandlerListBlockedSlots(t *testing.T) {
	mockSvc := &calendarServiceMock{}
	handler := NewCalendarHandler(mockSvc)
	c, w := newTestContext(http.MethodGet, "/blocked-slots?slotId=A&from=2024-03-01&to=2024-03-31", "")
	handler.ListBlockedSlots(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.CalendarQuery{SlotID: "A", From: "2024-03-01", To: "2024-03-31"}, mockSvc.lastQuery)
}

func TestMetricsHandlerReady(t *testing.T) {
	metrics := service.NewMetricsService()
	healthy := NewMetricsHandler(metrics, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
	})
	c, w := newTestContext(http.MethodGet, "/ready", "")
	healthy.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	failing := NewMetricsHandler(metrics, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})
	c, w = newTestContext(http.MethodGet, "/ready", "")
	failing.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeEnvelope(t, w)
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "connection refused", checks["redis"])
}

type authServiceMock struct {
	lastLogin models.LoginRequest
	meID      string
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.lastLogin = req
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "tok", User: models.UserInfo{ID: "admin"}}, nil
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	m.meID = userID
	return &models.UserInfo{ID: userID, Role: models.RoleAdmin}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/auth/login", `{"email":"owner@studio.test","password":"secret"}`)
	c.Request.Header.Set("User-Agent", "panel/2.1")
	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "panel/2.1", mockSvc.lastLogin.UserAgent)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "tok", data["accessToken"])

	c, w = newTestContext(http.MethodPost, "/auth/login", `{"email":"owner@studio.test","password":"nope"}`)
	handler.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)
	c, w := newTestContext(http.MethodGet, "/auth/me", "")
	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", mockSvc.meID)
}
