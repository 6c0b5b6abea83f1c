package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/studio-agenda-api/internal/models"
)

const insertEnrollmentQuery = `INSERT INTO enrollments (id, student_id, slot_id, active, notes, created_at, updated_at)
VALUES (:id, :student_id, :slot_id, :active, :notes, :created_at, :updated_at)`

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.slot_id, e.active, e.notes, e.created_at, e.updated_at,
s.name AS student_name, s.email AS student_email, sl.day_of_week, sl.start_time, sl.end_time,
m.name AS modality_name, t.name AS teacher_name
FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN schedule_slots sl ON sl.id = e.slot_id
JOIN modalities m ON m.id = sl.modality_id
JOIN teachers t ON t.id = sl.teacher_id`

func prepareEnrollment(enrollment *models.Enrollment) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
}

// EnrollmentRepository handles persistence for student enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by identifier.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActive returns the active enrollment of a student on a slot.
func (r *EnrollmentRepository) FindActive(ctx context.Context, studentID, slotID string) (*models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND slot_id = $2 AND active = TRUE LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, slotID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments with student and slot info.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)))
	}
	if filter.SlotID != "" {
		args = append(args, filter.SlotID)
		conditions = append(conditions, fmt.Sprintf("e.slot_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("e.active = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("%s WHERE %s ORDER BY sl.day_of_week, sl.start_time, s.name LIMIT %d OFFSET %d", enrollmentDetailSelect, where, size, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM enrollments e WHERE %s", where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ActiveRoster lists active students of a slot ordered by name.
func (r *EnrollmentRepository) ActiveRoster(ctx context.Context, slotID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE e.slot_id = $1 AND e.active = TRUE ORDER BY s.name`
	var roster []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &roster, query, slotID); err != nil {
		return nil, fmt.Errorf("list slot roster: %w", err)
	}
	return roster, nil
}

// CountActive returns how many active enrollments a slot holds.
func (r *EnrollmentRepository) CountActive(ctx context.Context, slotID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM enrollments WHERE slot_id = $1 AND active = TRUE`, slotID); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return total, nil
}

// ExistsForSlot reports whether the slot has any enrollment, active or not.
func (r *EnrollmentRepository) ExistsForSlot(ctx context.Context, slotID string) (bool, error) {
	return existsTx(ctx, r.db, "check enrollments for slot", `SELECT 1 FROM enrollments WHERE slot_id = $1 LIMIT 1`, slotID)
}

// Deactivate marks an enrollment inactive.
func (r *EnrollmentRepository) Deactivate(ctx context.Context, id string) error {
	return r.DeactivateMany(ctx, []string{id})
}

// DeactivateMany marks the given enrollments inactive.
func (r *EnrollmentRepository) DeactivateMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE enrollments SET active = FALSE, updated_at = $2 WHERE id = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids), time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate enrollments: %w", err)
	}
	return nil
}

// FindDuplicateActive groups students holding more than one active
// enrollment on the same slot. IDs are ordered newest first.
func (r *EnrollmentRepository) FindDuplicateActive(ctx context.Context) ([]models.DuplicateEnrollment, error) {
	const query = `SELECT student_id, slot_id, ARRAY_AGG(id ORDER BY updated_at DESC, created_at DESC) AS ids
FROM enrollments WHERE active = TRUE
GROUP BY student_id, slot_id HAVING COUNT(*) > 1`
	var rows []struct {
		StudentID string         `db:"student_id"`
		SlotID    string         `db:"slot_id"`
		IDs       pq.StringArray `db:"ids"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("find duplicate enrollments: %w", err)
	}
	result := make([]models.DuplicateEnrollment, 0, len(rows))
	for _, row := range rows {
		result = append(result, models.DuplicateEnrollment{
			StudentID:     row.StudentID,
			SlotID:        row.SlotID,
			EnrollmentIDs: []string(row.IDs),
		})
	}
	return result, nil
}

// InTx runs fn with enrollment statements bound to one transaction.
func (r *EnrollmentRepository) InTx(ctx context.Context, fn func(EnrollmentTx) error) error {
	return runInTx(ctx, r.db, "enrollment", func(s *txStatements) error {
		return fn(s)
	})
}
