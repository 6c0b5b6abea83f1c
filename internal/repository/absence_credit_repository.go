package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-agenda-api/internal/models"
)

const (
	creditColumns = `id, student_id, origin_slot_id, absence_date, reason, expires_at, consumed, created_at`
	usageColumns  = `id, credit_id, student_id, session_date, slot_id, attendance_confirmed, created_at`
)

// AbsenceCreditRepository persists make-up credits and their usages.
type AbsenceCreditRepository struct {
	db *sqlx.DB
}

// NewAbsenceCreditRepository constructs the repository.
func NewAbsenceCreditRepository(db *sqlx.DB) *AbsenceCreditRepository {
	return &AbsenceCreditRepository{db: db}
}

// Create inserts a credit.
func (r *AbsenceCreditRepository) Create(ctx context.Context, credit *models.AbsenceCredit) error {
	if credit.ID == "" {
		credit.ID = uuid.NewString()
	}
	if credit.CreatedAt.IsZero() {
		credit.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO absence_credits (id, student_id, origin_slot_id, absence_date, reason, expires_at, consumed, created_at)
VALUES (:id, :student_id, :origin_slot_id, :absence_date, :reason, :expires_at, :consumed, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, credit); err != nil {
		return fmt.Errorf("create absence credit: %w", err)
	}
	return nil
}

// FindByID returns a credit by identifier.
func (r *AbsenceCreditRepository) FindByID(ctx context.Context, id string) (*models.AbsenceCredit, error) {
	var credit models.AbsenceCredit
	if err := r.db.GetContext(ctx, &credit, `SELECT `+creditColumns+` FROM absence_credits WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &credit, nil
}

// List returns credits ordered by absence date, newest first.
func (r *AbsenceCreditRepository) List(ctx context.Context, filter models.CreditFilter) ([]models.AbsenceCredit, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.AvailableOnly {
		args = append(args, time.Now().UTC())
		conditions = append(conditions, fmt.Sprintf("consumed = FALSE AND (expires_at IS NULL OR expires_at >= $%d)", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM absence_credits WHERE %s ORDER BY absence_date DESC", creditColumns, strings.Join(conditions, " AND "))
	var credits []models.AbsenceCredit
	if err := r.db.SelectContext(ctx, &credits, query, args...); err != nil {
		return nil, fmt.Errorf("list absence credits: %w", err)
	}
	return credits, nil
}

// ListUsages returns usages of a student's credits, newest session first.
func (r *AbsenceCreditRepository) ListUsages(ctx context.Context, studentID string) ([]models.CreditUsage, error) {
	query := `SELECT ` + usageColumns + ` FROM credit_usages`
	args := []interface{}{}
	if studentID != "" {
		query += ` WHERE student_id = $1`
		args = append(args, studentID)
	}
	query += ` ORDER BY session_date DESC`
	var usages []models.CreditUsage
	if err := r.db.SelectContext(ctx, &usages, query, args...); err != nil {
		return nil, fmt.Errorf("list credit usages: %w", err)
	}
	return usages, nil
}

// FindUsage returns a usage by identifier.
func (r *AbsenceCreditRepository) FindUsage(ctx context.Context, id string) (*models.CreditUsage, error) {
	var usage models.CreditUsage
	if err := r.db.GetContext(ctx, &usage, `SELECT `+usageColumns+` FROM credit_usages WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &usage, nil
}

// ConfirmAttendance records whether the student attended the make-up session.
func (r *AbsenceCreditRepository) ConfirmAttendance(ctx context.Context, id string, confirmed bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE credit_usages SET attendance_confirmed = $2 WHERE id = $1`, id, confirmed); err != nil {
		return fmt.Errorf("confirm credit usage: %w", err)
	}
	return nil
}

// InTx runs fn with credit statements bound to one transaction.
func (r *AbsenceCreditRepository) InTx(ctx context.Context, fn func(CreditTx) error) error {
	return runInTx(ctx, r.db, "absence credit", func(s *txStatements) error {
		return fn(s)
	})
}
