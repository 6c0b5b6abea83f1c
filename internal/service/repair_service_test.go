package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

type stubRepairEnrollments struct {
	duplicates  []models.DuplicateEnrollment
	deactivated []string
	err         error
}

func (s *stubRepairEnrollments) FindDuplicateActive(ctx context.Context) ([]models.DuplicateEnrollment, error) {
	return s.duplicates, s.err
}

func (s *stubRepairEnrollments) DeactivateMany(ctx context.Context, ids []string) error {
	s.deactivated = append(s.deactivated, ids...)
	return nil
}

type stubStaleTransfers []models.StaleTransfer

func (s stubStaleTransfers) ListTransfersWithActiveSource(ctx context.Context) ([]models.StaleTransfer, error) {
	return s, nil
}

func TestRepairServiceDryRun(t *testing.T) {
	enrollments := &stubRepairEnrollments{duplicates: []models.DuplicateEnrollment{
		{StudentID: "S", SlotID: "A", EnrollmentIDs: []string{"newest", "older", "oldest"}},
	}}
	audit := &recordingAudit{}
	svc := NewRepairService(enrollments, stubStaleTransfers{{ChangeRequestID: "cr1", StudentID: "S", SourceEnrollmentID: "src"}}, audit, nil)

	report, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, report.Applied)
	assert.Equal(t, []string{"older", "oldest", "src"}, report.Deactivated)
	assert.Empty(t, enrollments.deactivated)
	assert.Empty(t, audit.actions())
}

func TestRepairServiceApply(t *testing.T) {
	enrollments := &stubRepairEnrollments{duplicates: []models.DuplicateEnrollment{
		{StudentID: "S", SlotID: "A", EnrollmentIDs: []string{"keep", "drop"}},
	}}
	stale := stubStaleTransfers{
		{ChangeRequestID: "cr1", SourceEnrollmentID: "drop"},
		{ChangeRequestID: "cr2", SourceEnrollmentID: "src"},
	}
	audit := &recordingAudit{}
	svc := NewRepairService(enrollments, stale, audit, nil)

	report, err := svc.Run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.Equal(t, []string{"drop", "src"}, enrollments.deactivated)
	assert.Equal(t, []string{models.AuditActionRepair}, audit.actions())
}

func TestRepairServiceCleanDatabase(t *testing.T) {
	enrollments := &stubRepairEnrollments{}
	audit := &recordingAudit{}
	svc := NewRepairService(enrollments, stubStaleTransfers(nil), audit, nil)

	report, err := svc.Run(context.Background(), true)
	require.NoError(t, err)
	assert.NotNil(t, report.Duplicates)
	assert.NotNil(t, report.StaleTransfers)
	assert.Empty(t, report.Deactivated)
	assert.Empty(t, enrollments.deactivated)
	assert.Empty(t, audit.actions())
}

func TestRepairServiceScanFailure(t *testing.T) {
	svc := NewRepairService(&stubRepairEnrollments{err: errors.New("down")}, stubStaleTransfers(nil), nil, nil)
	_, err := svc.Run(context.Background(), false)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestRepairServiceSkipsLegitimatelyReactivatedSources(t *testing.T) {
	approvedAt := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	targetID := "target"
	active, inactive := true, false
	candidates := stubStaleTransfers{
		{ChangeRequestID: "target-active", SourceEnrollmentID: "s1", TargetEnrollmentID: &targetID, TargetActive: &active, ApprovedAt: approvedAt, SourceUpdatedAt: approvedAt},
		{ChangeRequestID: "moved-back", SourceEnrollmentID: "s2", TargetEnrollmentID: &targetID, TargetActive: &inactive, SourceRetargeted: true, ApprovedAt: approvedAt, SourceUpdatedAt: approvedAt},
		{ChangeRequestID: "re-enrolled", SourceEnrollmentID: "s3", TargetEnrollmentID: &targetID, TargetActive: &inactive, ApprovedAt: approvedAt, SourceUpdatedAt: approvedAt.Add(time.Hour)},
		{ChangeRequestID: "target-down", SourceEnrollmentID: "s4", TargetEnrollmentID: &targetID, TargetActive: &inactive, ApprovedAt: approvedAt, SourceUpdatedAt: approvedAt.Add(-time.Second)},
		{ChangeRequestID: "target-missing", SourceEnrollmentID: "s5", ApprovedAt: approvedAt, SourceUpdatedAt: approvedAt},
	}
	enrollments := &stubRepairEnrollments{}
	svc := NewRepairService(enrollments, candidates, nil, nil)

	report, err := svc.Run(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, report.StaleTransfers, 2)
	assert.Equal(t, "target-down", report.StaleTransfers[0].ChangeRequestID)
	assert.Equal(t, "target-missing", report.StaleTransfers[1].ChangeRequestID)
	assert.Equal(t, []string{"s4", "s5"}, enrollments.deactivated)
}

func TestRepairServiceIgnoresTransferMovedBack(t *testing.T) {
	store := newMemStore()
	store.addStudent("S")
	store.addSlot("A", intPtr(10), 0)
	store.addSlot("B", intPtr(10), 0)
	store.addEnrollment("E1", "S", "A", true)
	requests := NewChangeRequestService(changeRequestView{store}, studentView{store}, slotView{store}, enrollmentView{store},
		validation.New(), nil, WithChangeRequestClock(func() time.Time { return store.clock }))
	ctx := context.Background()

	forward, err := requests.Create(ctx, dto.CreateChangeRequest{StudentID: "S", SourceEnrollmentID: "E1", CurrentSlotID: "A", TargetSlotID: "B"}, "staff")
	require.NoError(t, err)
	forward, err = requests.Approve(ctx, forward.ID, "admin")
	require.NoError(t, err)
	movedTo := *forward.TargetEnrollmentID

	back, err := requests.Create(ctx, dto.CreateChangeRequest{StudentID: "S", SourceEnrollmentID: movedTo, CurrentSlotID: "B", TargetSlotID: "A"}, "staff")
	require.NoError(t, err)
	back, err = requests.Approve(ctx, back.ID, "admin")
	require.NoError(t, err)
	require.Equal(t, "E1", *back.TargetEnrollmentID)
	require.True(t, store.enrollments["E1"].Active)

	enrollments := &stubRepairEnrollments{}
	report, err := NewRepairService(enrollments, changeRequestView{store}, nil, nil).Run(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, report.StaleTransfers)
	assert.Empty(t, report.Deactivated)
	assert.Empty(t, enrollments.deactivated)
	assert.True(t, store.enrollments["E1"].Active)
}

func TestRepairServiceFlagsHalfAppliedTransfer(t *testing.T) {
	store := newMemStore()
	store.addStudent("S")
	store.addEnrollment("E1", "S", "A", true)
	approvedAt := store.tick()
	store.requests["cr-legacy"] = &models.ChangeRequest{
		ID: "cr-legacy", StudentID: "S", SourceEnrollmentID: "E1", CurrentSlotID: "A", TargetSlotID: "B",
		Status: models.ChangeRequestApproved, CreatedAt: approvedAt, UpdatedAt: approvedAt,
	}

	enrollments := &stubRepairEnrollments{}
	report, err := NewRepairService(enrollments, changeRequestView{store}, nil, nil).Run(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, report.StaleTransfers, 1)
	assert.Equal(t, "cr-legacy", report.StaleTransfers[0].ChangeRequestID)
	assert.Equal(t, []string{"E1"}, enrollments.deactivated)
}
