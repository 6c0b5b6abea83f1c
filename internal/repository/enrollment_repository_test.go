package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-agenda-api/internal/models"
)

func TestEnrollmentRepositoryFindDuplicateActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("GROUP BY student_id, slot_id HAVING COUNT\\(\\*\\) > 1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "slot_id", "ids"}).AddRow("stu", "slot", "{enr-new,enr-old}"))

	dupes, err := repo.FindDuplicateActive(context.Background())
	require.NoError(t, err)
	require.Len(t, dupes, 1)
	assert.Equal(t, []string{"enr-new", "enr-old"}, dupes[0].EnrollmentIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeactivateManySkipsEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	require.NoError(t, repo.DeactivateMany(context.Background(), nil))

	mock.ExpectExec("UPDATE enrollments SET active = FALSE").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, repo.DeactivateMany(context.Background(), []string{"a", "b"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryInsertDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx EnrollmentTx) error {
		return tx.InsertEnrollment(context.Background(), &models.Enrollment{StudentID: "stu", SlotID: "slot", Active: true})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	active := true
	mock.ExpectQuery("WHERE 1=1 AND e.slot_id = \\$1 AND e.active = \\$2 ORDER BY").
		WithArgs("slot", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "slot_id", "active", "notes", "created_at", "updated_at",
			"student_name", "student_email", "day_of_week", "start_time", "end_time", "modality_name", "teacher_name"}))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments e WHERE 1=1 AND e.slot_id = \\$1 AND e.active = \\$2").
		WithArgs("slot", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	result, total, err := repo.List(context.Background(), models.EnrollmentFilter{SlotID: "slot", Active: &active})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
