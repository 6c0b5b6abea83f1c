package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/studio-agenda-api/internal/models"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// EnrollmentTx holds the statements used to place a student on a slot under
// the slot row lock.
type EnrollmentTx interface {
	LockSlot(ctx context.Context, slotID string) (*models.SlotCapacity, error)
	CountActiveEnrollments(ctx context.Context, slotID string) (int, error)
	FindEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	LatestEnrollment(ctx context.Context, studentID, slotID string) (*models.Enrollment, error)
	SetEnrollmentActive(ctx context.Context, id string, active bool) error
	InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error
}

// ChangeRequestTx extends EnrollmentTx with the change-request rows touched by
// approve and cancel.
type ChangeRequestTx interface {
	EnrollmentTx
	LockChangeRequest(ctx context.Context, id string) (*models.ChangeRequest, error)
	MarkApproved(ctx context.Context, id, approverID, targetEnrollmentID string, targetPreexisting bool, at time.Time) error
	DeleteChangeRequest(ctx context.Context, id string) error
}

// CreditTx holds the statements used when consuming or restoring credits.
type CreditTx interface {
	LockCredit(ctx context.Context, id string) (*models.AbsenceCredit, error)
	SetCreditConsumed(ctx context.Context, id string, consumed bool) error
	InsertUsage(ctx context.Context, usage *models.CreditUsage) error
	LockUsage(ctx context.Context, id string) (*models.CreditUsage, error)
	DeleteUsage(ctx context.Context, id string) error
	IsHoliday(ctx context.Context, day time.Time) (bool, error)
	IsBlocked(ctx context.Context, slotID string, day time.Time) (bool, error)
}

// txStatements implements every *Tx interface on top of one sqlx transaction.
type txStatements struct {
	tx *sqlx.Tx
}

// runInTx executes fn inside a transaction. It commits when fn succeeds and
// rolls back otherwise; the error from fn is returned untouched.
func runInTx(ctx context.Context, db *sqlx.DB, label string, fn func(*txStatements) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s transaction: %w", label, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&txStatements{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", label, err)
	}
	return nil
}

const slotCapacityQuery = `SELECT s.id, s.active, s.capacity, m.default_capacity
FROM schedule_slots s JOIN modalities m ON m.id = s.modality_id
WHERE s.id = $1`

func (s *txStatements) LockSlot(ctx context.Context, slotID string) (*models.SlotCapacity, error) {
	var slot models.SlotCapacity
	if err := s.tx.GetContext(ctx, &slot, slotCapacityQuery+" FOR UPDATE OF s", slotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock schedule slot: %w", err)
	}
	return &slot, nil
}

func (s *txStatements) CountActiveEnrollments(ctx context.Context, slotID string) (int, error) {
	var total int
	if err := s.tx.GetContext(ctx, &total, `SELECT COUNT(*) FROM enrollments WHERE slot_id = $1 AND active = TRUE`, slotID); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return total, nil
}

const enrollmentColumns = `id, student_id, slot_id, active, notes, created_at, updated_at`

func (s *txStatements) FindEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := s.tx.GetContext(ctx, &enrollment, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// LatestEnrollment prefers an active row and otherwise returns the most
// recently touched one.
func (s *txStatements) LatestEnrollment(ctx context.Context, studentID, slotID string) (*models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments
WHERE student_id = $1 AND slot_id = $2
ORDER BY active DESC, updated_at DESC LIMIT 1 FOR UPDATE`
	var enrollment models.Enrollment
	if err := s.tx.GetContext(ctx, &enrollment, query, studentID, slotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find latest enrollment: %w", err)
	}
	return &enrollment, nil
}

func (s *txStatements) SetEnrollmentActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE enrollments SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := s.tx.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set enrollment active: %w", err)
	}
	return nil
}

func (s *txStatements) InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	prepareEnrollment(enrollment)
	if _, err := s.tx.NamedExecContext(ctx, insertEnrollmentQuery, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

func (s *txStatements) LockChangeRequest(ctx context.Context, id string) (*models.ChangeRequest, error) {
	var request models.ChangeRequest
	if err := s.tx.GetContext(ctx, &request, `SELECT `+changeRequestColumns+` FROM change_requests WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock change request: %w", err)
	}
	return &request, nil
}

func (s *txStatements) MarkApproved(ctx context.Context, id, approverID, targetEnrollmentID string, targetPreexisting bool, at time.Time) error {
	const query = `UPDATE change_requests SET status = $2, approved_by = $3, target_enrollment_id = $4, target_preexisting = $5, updated_at = $6
WHERE id = $1 AND status = $7`
	result, err := s.tx.ExecContext(ctx, query, id, models.ChangeRequestApproved, approverID, targetEnrollmentID, targetPreexisting, at, models.ChangeRequestPending)
	if err != nil {
		return fmt.Errorf("mark change request approved: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *txStatements) DeleteChangeRequest(ctx context.Context, id string) error {
	if _, err := s.tx.ExecContext(ctx, `DELETE FROM change_requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete change request: %w", err)
	}
	return nil
}

func (s *txStatements) LockCredit(ctx context.Context, id string) (*models.AbsenceCredit, error) {
	var credit models.AbsenceCredit
	if err := s.tx.GetContext(ctx, &credit, `SELECT `+creditColumns+` FROM absence_credits WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock absence credit: %w", err)
	}
	return &credit, nil
}

func (s *txStatements) SetCreditConsumed(ctx context.Context, id string, consumed bool) error {
	if _, err := s.tx.ExecContext(ctx, `UPDATE absence_credits SET consumed = $2 WHERE id = $1`, id, consumed); err != nil {
		return fmt.Errorf("set credit consumed: %w", err)
	}
	return nil
}

func (s *txStatements) InsertUsage(ctx context.Context, usage *models.CreditUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO credit_usages (id, credit_id, student_id, session_date, slot_id, attendance_confirmed, created_at)
VALUES (:id, :credit_id, :student_id, :session_date, :slot_id, :attendance_confirmed, :created_at)`
	if _, err := s.tx.NamedExecContext(ctx, query, usage); err != nil {
		return fmt.Errorf("insert credit usage: %w", err)
	}
	return nil
}

func (s *txStatements) LockUsage(ctx context.Context, id string) (*models.CreditUsage, error) {
	var usage models.CreditUsage
	if err := s.tx.GetContext(ctx, &usage, `SELECT `+usageColumns+` FROM credit_usages WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock credit usage: %w", err)
	}
	return &usage, nil
}

func (s *txStatements) DeleteUsage(ctx context.Context, id string) error {
	if _, err := s.tx.ExecContext(ctx, `DELETE FROM credit_usages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete credit usage: %w", err)
	}
	return nil
}

func (s *txStatements) IsHoliday(ctx context.Context, day time.Time) (bool, error) {
	return existsTx(ctx, s.tx, "check holiday", `SELECT 1 FROM holidays WHERE date = $1::date LIMIT 1`, day)
}

func (s *txStatements) IsBlocked(ctx context.Context, slotID string, day time.Time) (bool, error) {
	return existsTx(ctx, s.tx, "check blocked slot", `SELECT 1 FROM blocked_slots WHERE slot_id = $1 AND date = $2::date LIMIT 1`, slotID, day)
}

func existsTx(ctx context.Context, q sqlx.QueryerContext, label, query string, args ...interface{}) (bool, error) {
	var one int
	if err := sqlx.GetContext(ctx, q, &one, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", label, err)
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
