package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-agenda-api/internal/models"
)

const changeRequestColumns = `id, student_id, source_enrollment_id, current_slot_id, target_slot_id, target_enrollment_id,
target_preexisting, reason, status, rejection_reason, approved_by, created_at, updated_at`

// ChangeRequestRepository persists reschedule requests.
type ChangeRequestRepository struct {
	db *sqlx.DB
}

// NewChangeRequestRepository constructs the repository.
func NewChangeRequestRepository(db *sqlx.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

// Create inserts a new change request row.
func (r *ChangeRequestRepository) Create(ctx context.Context, request *models.ChangeRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.ChangeRequestPending
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	const query = `INSERT INTO change_requests
	(id, student_id, source_enrollment_id, current_slot_id, target_slot_id, target_enrollment_id, target_preexisting, reason, status, rejection_reason, approved_by, created_at, updated_at)
	VALUES (:id, :student_id, :source_enrollment_id, :current_slot_id, :target_slot_id, :target_enrollment_id, :target_preexisting, :reason, :status, :rejection_reason, :approved_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create change request: %w", err)
	}
	return nil
}

// FindByID fetches a change request by identifier.
func (r *ChangeRequestRepository) FindByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	var request models.ChangeRequest
	if err := r.db.GetContext(ctx, &request, `SELECT `+changeRequestColumns+` FROM change_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns change requests matching the filter, newest first.
func (r *ChangeRequestRepository) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + changeRequestColumns + ` FROM change_requests`)

	conditions := make([]string, 0, 2)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.ChangeRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	return requests, nil
}

// Reject moves a pending request to rejected. It returns sql.ErrNoRows when
// the request is missing or no longer pending.
func (r *ChangeRequestRepository) Reject(ctx context.Context, id, approverID, reason string, at time.Time) error {
	const query = `UPDATE change_requests SET status = $2, approved_by = $3, rejection_reason = $4, updated_at = $5
WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, id, models.ChangeRequestRejected, approverID, reason, at, models.ChangeRequestPending)
	if err != nil {
		return fmt.Errorf("reject change request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reject change request rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExistsForSlot reports whether any request references the slot.
func (r *ChangeRequestRepository) ExistsForSlot(ctx context.Context, slotID string) (bool, error) {
	return existsTx(ctx, r.db, "check change requests for slot",
		`SELECT 1 FROM change_requests WHERE current_slot_id = $1 OR target_slot_id = $1 LIMIT 1`, slotID)
}

// ListTransfersWithActiveSource returns approved requests whose source
// enrollment is still active. Each row carries the target state and whether
// a later approved request moved the student back onto the source, so the
// caller can separate interrupted transfers from legitimate reactivations.
func (r *ChangeRequestRepository) ListTransfersWithActiveSource(ctx context.Context) ([]models.StaleTransfer, error) {
	const query = `SELECT cr.id AS change_request_id, cr.student_id, cr.source_enrollment_id, cr.target_enrollment_id,
	te.active AS target_active, cr.updated_at AS approved_at, se.updated_at AS source_updated_at,
	EXISTS (SELECT 1 FROM change_requests later
		WHERE later.id <> cr.id AND later.status = $1
		AND later.target_enrollment_id = cr.source_enrollment_id
		AND later.updated_at >= cr.updated_at) AS source_retargeted
FROM change_requests cr
JOIN enrollments se ON se.id = cr.source_enrollment_id
LEFT JOIN enrollments te ON te.id = cr.target_enrollment_id
WHERE cr.status = $1 AND se.active = TRUE
ORDER BY cr.updated_at`
	var transfers []models.StaleTransfer
	if err := r.db.SelectContext(ctx, &transfers, query, models.ChangeRequestApproved); err != nil {
		return nil, fmt.Errorf("list transfers with active source: %w", err)
	}
	return transfers, nil
}

// InTx runs fn with the change-request statements bound to one transaction.
func (r *ChangeRequestRepository) InTx(ctx context.Context, fn func(ChangeRequestTx) error) error {
	return runInTx(ctx, r.db, "change request", func(s *txStatements) error {
		return fn(s)
	})
}

// IsNotFound reports whether err signals a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
