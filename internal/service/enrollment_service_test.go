package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

func newEnrollmentFixture(t *testing.T) (*EnrollmentService, *memStore, *recordingAudit) {
	t.Helper()
	store := newMemStore()
	store.addStudent("S")
	store.addStudent("T")
	store.addSlot("A", intPtr(1), 0)
	audit := &recordingAudit{}
	svc := NewEnrollmentService(enrollmentView{store}, studentView{store}, validation.New(), audit, zap.NewNop())
	return svc, store, audit
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	svc, store, audit := newEnrollmentFixture(t)
	ctx := context.Background()

	enrollment, err := svc.Enroll(ctx, dto.EnrollRequest{StudentID: "S", SlotID: "A"}, "staff")
	require.NoError(t, err)
	assert.True(t, enrollment.Active)
	assert.Len(t, store.activeOn("S", "A"), 1)

	_, err = svc.Enroll(ctx, dto.EnrollRequest{StudentID: "S", SlotID: "A"}, "staff")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Enroll(ctx, dto.EnrollRequest{StudentID: "T", SlotID: "A"}, "staff")
	assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
	assert.Empty(t, store.activeOn("T", "A"))

	assert.Equal(t, []string{models.AuditActionEnrollmentCreate}, audit.actions())
}

func TestEnrollmentServiceReactivatesPreviousRow(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(t)
	store.addEnrollment("old", "S", "A", false)

	enrollment, err := svc.Enroll(context.Background(), dto.EnrollRequest{StudentID: "S", SlotID: "A"}, "staff")
	require.NoError(t, err)
	assert.Equal(t, "old", enrollment.ID)
	assert.True(t, store.enrollments["old"].Active)
	assert.Len(t, store.enrollments, 1)
}

func TestEnrollmentServiceRejectsBadReferences(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(t)
	store.addSlot("closed", nil, 0)
	store.slots["closed"].Active = false
	store.students["T"].Active = false
	ctx := context.Background()

	cases := map[string]dto.EnrollRequest{
		"missing student":  {StudentID: "ghost", SlotID: "A"},
		"inactive student": {StudentID: "T", SlotID: "A"},
		"missing slot":     {StudentID: "S", SlotID: "ghost"},
		"inactive slot":    {StudentID: "S", SlotID: "closed"},
		"empty payload":    {},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Enroll(ctx, req, "staff")
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation), err)
		})
	}
	assert.Empty(t, store.enrollments)
}

func TestEnrollmentServiceConcurrentEnrollHonoursCapacity(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, student := range []string{"S", "T"} {
		wg.Add(1)
		go func(i int, student string) {
			defer wg.Done()
			_, errs[i] = svc.Enroll(context.Background(), dto.EnrollRequest{StudentID: student, SlotID: "A"}, "staff")
		}(i, student)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, store.countActive("A"))
}

func TestEnrollmentServiceDeactivateAndList(t *testing.T) {
	svc, store, audit := newEnrollmentFixture(t)
	store.addEnrollment("E1", "S", "A", true)
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, "E1", "staff"))
	assert.False(t, store.enrollments["E1"].Active)
	require.NoError(t, svc.Deactivate(ctx, "E1", "staff"))
	assert.Equal(t, []string{models.AuditActionEnrollmentDeactivate}, audit.actions())

	err := svc.Deactivate(ctx, "missing", "staff")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	inactive := false
	items, page, err := svc.List(ctx, dto.EnrollmentQuery{StudentID: "S", Active: &inactive})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Student S", items[0].StudentName)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 50, page.PageSize)
}
