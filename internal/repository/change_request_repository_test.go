package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-agenda-api/internal/models"
)

var changeRequestRowColumns = []string{"id", "student_id", "source_enrollment_id", "current_slot_id", "target_slot_id", "target_enrollment_id",
	"target_preexisting", "reason", "status", "rejection_reason", "approved_by", "created_at", "updated_at"}

func TestChangeRequestRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	mock.ExpectExec("INSERT INTO change_requests").WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.ChangeRequest{StudentID: "stu", SourceEnrollmentID: "enr", CurrentSlotID: "a", TargetSlotID: "b"}
	require.NoError(t, repo.Create(context.Background(), request))
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, models.ChangeRequestPending, request.Status)
	assert.False(t, request.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(changeRequestRowColumns).
		AddRow("cr-1", "stu", "enr", "a", "b", nil, false, "trip", "pending", nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM change_requests WHERE status IN ($1) AND student_id = $2 ORDER BY created_at DESC LIMIT 10 OFFSET 0")).
		WithArgs(models.ChangeRequestPending, "stu").
		WillReturnRows(rows)

	result, err := repo.List(context.Background(), models.ChangeRequestFilter{
		StudentID: "stu",
		Status:    []models.ChangeRequestStatus{models.ChangeRequestPending},
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "cr-1", result[0].ID)
	assert.Nil(t, result[0].TargetEnrollmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestRepositoryRejectNotPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	mock.ExpectExec("UPDATE change_requests SET status").
		WithArgs("cr-1", models.ChangeRequestRejected, "admin", "full", sqlmock.AnyArg(), models.ChangeRequestPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reject(context.Background(), "cr-1", "admin", "full", time.Now())
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestRepositoryInTxCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM change_requests WHERE id = \\$1 FOR UPDATE").
		WithArgs("cr-1").
		WillReturnRows(sqlmock.NewRows(changeRequestRowColumns).
			AddRow("cr-1", "stu", "enr", "a", "b", nil, false, "", "pending", nil, nil, now, now))
	mock.ExpectQuery("(?s)FROM schedule_slots s JOIN modalities m .* FOR UPDATE OF s").
		WithArgs("b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "active", "capacity", "default_capacity"}).AddRow("b", true, 2, 10))
	mock.ExpectExec("UPDATE change_requests SET status").
		WithArgs("cr-1", models.ChangeRequestApproved, "admin", "enr-2", false, now, models.ChangeRequestPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx ChangeRequestTx) error {
		request, err := tx.LockChangeRequest(context.Background(), "cr-1")
		require.NoError(t, err)
		slot, err := tx.LockSlot(context.Background(), request.TargetSlotID)
		require.NoError(t, err)
		assert.Equal(t, 2, slot.Limit())
		return tx.MarkApproved(context.Background(), request.ID, "admin", "enr-2", false, now)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestRepositoryInTxRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE enrollments SET active").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.InTx(context.Background(), func(tx ChangeRequestTx) error {
		require.NoError(t, tx.SetEnrollmentActive(context.Background(), "enr", false))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkApprovedDetectsLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE change_requests SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx ChangeRequestTx) error {
		return tx.MarkApproved(context.Background(), "cr-1", "admin", "enr", true, time.Now())
	})
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestRepositoryListTransfersWithActiveSource(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	approved := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"change_request_id", "student_id", "source_enrollment_id", "target_enrollment_id",
		"target_active", "approved_at", "source_updated_at", "source_retargeted"}).
		AddRow("cr-1", "stu", "enr-a", nil, nil, approved, approved, false).
		AddRow("cr-2", "stu", "enr-b", "enr-c", false, approved, approved.Add(time.Hour), true)
	mock.ExpectQuery("(?s)LEFT JOIN enrollments te ON te.id = cr.target_enrollment_id.*WHERE cr.status = \\$1 AND se.active = TRUE").
		WithArgs(models.ChangeRequestApproved).
		WillReturnRows(rows)

	transfers, err := repo.ListTransfersWithActiveSource(context.Background())
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Nil(t, transfers[0].TargetActive)
	assert.True(t, transfers[0].Interrupted())
	require.NotNil(t, transfers[1].TargetActive)
	assert.False(t, *transfers[1].TargetActive)
	assert.True(t, transfers[1].SourceRetargeted)
	assert.False(t, transfers[1].Interrupted())
	assert.NoError(t, mock.ExpectationsWereMet())
}
