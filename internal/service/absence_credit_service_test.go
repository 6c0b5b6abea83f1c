package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

func newCreditFixture(t *testing.T) (*AbsenceCreditService, *memStore, *recordingAudit) {
	t.Helper()
	store := newMemStore()
	store.addStudent("S")
	store.addSlot("A", intPtr(8), 0)
	audit := &recordingAudit{}
	svc := NewAbsenceCreditService(creditView{store}, studentView{store}, slotView{store}, validation.New(), audit, zap.NewNop())
	return svc, store, audit
}

func grant(t *testing.T, svc *AbsenceCreditService, expires *string) *models.AbsenceCredit {
	t.Helper()
	credit, err := svc.Grant(context.Background(), dto.GrantCreditRequest{
		StudentID:    "S",
		OriginSlotID: strPtr("A"),
		AbsenceDate:  "2024-03-04",
		Reason:       "sick",
		ExpiresAt:    expires,
	})
	require.NoError(t, err)
	return credit
}

func TestAbsenceCreditGrantValidation(t *testing.T) {
	svc, store, _ := newCreditFixture(t)
	ctx := context.Background()

	cases := map[string]dto.GrantCreditRequest{
		"missing student":       {StudentID: "ghost", AbsenceDate: "2024-03-04"},
		"unknown origin slot":   {StudentID: "S", OriginSlotID: strPtr("nope"), AbsenceDate: "2024-03-04"},
		"bad date":              {StudentID: "S", AbsenceDate: "04/03/2024"},
		"expiry before absence": {StudentID: "S", AbsenceDate: "2024-03-04", ExpiresAt: strPtr("2024-03-01")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Grant(ctx, req)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation), err)
		})
	}
	assert.Empty(t, store.credits)
}

func TestAbsenceCreditUseConsumesOnce(t *testing.T) {
	svc, store, audit := newCreditFixture(t)
	ctx := context.Background()
	credit := grant(t, svc, strPtr("2024-04-30"))

	usage, err := svc.Use(ctx, credit.ID, dto.UseCreditRequest{SessionDate: "2024-03-11", SlotID: strPtr("A")}, "staff")
	require.NoError(t, err)
	assert.Equal(t, credit.ID, usage.CreditID)
	assert.Equal(t, "S", usage.StudentID)
	assert.True(t, store.credits[credit.ID].Consumed)
	assert.Len(t, store.usages, 1)
	assert.Equal(t, []string{models.AuditActionCreditUse}, audit.actions())

	_, err = svc.Use(ctx, credit.ID, dto.UseCreditRequest{SessionDate: "2024-03-12"}, "staff")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Len(t, store.usages, 1)

	available, err := svc.ListCredits(ctx, "S", true)
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestAbsenceCreditUseGuards(t *testing.T) {
	svc, store, _ := newCreditFixture(t)
	ctx := context.Background()
	credit := grant(t, svc, strPtr("2024-03-31"))
	store.holidays["2024-03-29"] = true
	store.blocked["A|2024-03-18"] = true

	_, err := svc.Use(ctx, "missing", dto.UseCreditRequest{SessionDate: "2024-03-11"}, "staff")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Use(ctx, credit.ID, dto.UseCreditRequest{SessionDate: "2024-04-01"}, "staff")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Use(ctx, credit.ID, dto.UseCreditRequest{SessionDate: "2024-03-29"}, "staff")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Use(ctx, credit.ID, dto.UseCreditRequest{SessionDate: "2024-03-18", SlotID: strPtr("A")}, "staff")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Use(ctx, credit.ID, dto.UseCreditRequest{SessionDate: "2024-03-18", SlotID: strPtr("ghost")}, "staff")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	assert.False(t, store.credits[credit.ID].Consumed)
	assert.Empty(t, store.usages)
}

func TestAbsenceCreditUseRollsBackOnInsertFailure(t *testing.T) {
	svc, store, _ := newCreditFixture(t)
	credit := grant(t, svc, nil)
	store.failOn["InsertUsage"] = errors.New("disk full")

	_, err := svc.Use(context.Background(), credit.ID, dto.UseCreditRequest{SessionDate: "2025-01-10"}, "staff")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.False(t, store.credits[credit.ID].Consumed)
}

func TestAbsenceCreditConfirmAndRevoke(t *testing.T) {
	svc, store, audit := newCreditFixture(t)
	ctx := context.Background()
	credit := grant(t, svc, nil)
	usage, err := svc.Use(ctx, credit.ID, dto.UseCreditRequest{SessionDate: "2024-03-11"}, "staff")
	require.NoError(t, err)

	confirmed := true
	updated, err := svc.ConfirmAttendance(ctx, usage.ID, dto.ConfirmAttendanceRequest{Confirmed: &confirmed})
	require.NoError(t, err)
	assert.True(t, updated.AttendanceConfirmed)
	assert.True(t, store.usages[usage.ID].AttendanceConfirmed)

	_, err = svc.ConfirmAttendance(ctx, usage.ID, dto.ConfirmAttendanceRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.ConfirmAttendance(ctx, "missing", dto.ConfirmAttendanceRequest{Confirmed: &confirmed})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	usages, err := svc.ListUsages(ctx, "S")
	require.NoError(t, err)
	assert.Len(t, usages, 1)

	require.NoError(t, svc.RevokeUsage(ctx, usage.ID, "adminX"))
	assert.Empty(t, store.usages)
	assert.False(t, store.credits[credit.ID].Consumed)
	assert.Equal(t, []string{models.AuditActionCreditUse, models.AuditActionCreditRevoke}, audit.actions())
	revoke := audit.entries[1]
	require.NotNil(t, revoke.UserID)
	assert.Equal(t, "adminX", *revoke.UserID)
	require.NotNil(t, revoke.ResourceID)
	assert.Equal(t, credit.ID, *revoke.ResourceID)
	assert.Contains(t, string(revoke.OldValues), usage.ID)

	err = svc.RevokeUsage(ctx, usage.ID, "adminX")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Len(t, audit.actions(), 2)
}

func TestAbsenceCreditUseRejectsSessionOffSlotWeekday(t *testing.T) {
	svc, store, audit := newCreditFixture(t)
	credit := grant(t, svc, nil)

	_, err := svc.Use(context.Background(), credit.ID, dto.UseCreditRequest{SessionDate: "2024-03-12", SlotID: strPtr("A")}, "staff")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "Monday")
	assert.False(t, store.credits[credit.ID].Consumed)
	assert.Empty(t, store.usages)
	assert.Empty(t, audit.actions())
}
