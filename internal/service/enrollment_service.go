package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/internal/repository"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	Deactivate(ctx context.Context, id string) error
	InTx(ctx context.Context, fn func(repository.EnrollmentTx) error) error
}

// EnrollmentService places students on slots.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentLookup
	validator *validation.Validator
	audit     auditRecorder
	logger    *zap.Logger
}

// NewEnrollmentService constructs the service. audit may be nil.
func NewEnrollmentService(repo enrollmentRepository, students studentLookup, validate *validation.Validator, audit auditRecorder, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &EnrollmentService{repo: repo, students: students, validator: validate, audit: audit, logger: logger}
}

// List returns enrollments with student and slot details.
func (s *EnrollmentService) List(ctx context.Context, query dto.EnrollmentQuery) ([]models.EnrollmentDetail, *models.Pagination, error) {
	filter := models.EnrollmentFilter{
		StudentID: strings.TrimSpace(query.StudentID),
		SlotID:    strings.TrimSpace(query.SlotID),
		Active:    query.Active,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, pagination(filter.Page, filter.PageSize, total, 50, 200), nil
}

// Enroll places a student on a slot under the slot row lock. A previous
// inactive enrollment on the same slot is reactivated instead of duplicated.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest, actorID string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, strings.TrimSpace(req.StudentID))
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}

	var result *models.Enrollment
	err = s.repo.InTx(ctx, func(tx repository.EnrollmentTx) error {
		slot, err := tx.LockSlot(ctx, strings.TrimSpace(req.SlotID))
		if err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrValidation, "schedule slot not found")
			}
			return internalError(err, "failed to lock schedule slot")
		}
		if !slot.Active {
			return appErrors.Clone(appErrors.ErrValidation, "schedule slot is inactive")
		}

		existing, err := latestEnrollment(ctx, tx, student.ID, slot.SlotID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Active {
			return appErrors.Clone(appErrors.ErrConflict, "student is already enrolled on this slot")
		}

		active, err := tx.CountActiveEnrollments(ctx, slot.SlotID)
		if err != nil {
			return internalError(err, "failed to count enrollments")
		}
		if slot.Full(active) {
			return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("schedule slot is full (%d/%d)", active, slot.Limit()))
		}

		if existing != nil {
			if err := tx.SetEnrollmentActive(ctx, existing.ID, true); err != nil {
				return internalError(err, "failed to reactivate enrollment")
			}
			existing.Active = true
			result = existing
			return nil
		}

		enrollment := &models.Enrollment{
			StudentID: student.ID,
			SlotID:    slot.SlotID,
			Active:    true,
			Notes:     strings.TrimSpace(req.Notes),
		}
		if err := tx.InsertEnrollment(ctx, enrollment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "student is already enrolled on this slot")
			}
			return internalError(err, "failed to create enrollment")
		}
		result = enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actorID, models.AuditActionEnrollmentCreate, result)
	return result, nil
}

// Deactivate ends an enrollment. Deactivating an inactive one is a no-op.
func (s *EnrollmentService) Deactivate(ctx context.Context, id, actorID string) error {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return internalError(err, "failed to load enrollment")
	}
	if !enrollment.Active {
		return nil
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to deactivate enrollment")
	}
	enrollment.Active = false
	s.record(ctx, actorID, models.AuditActionEnrollmentDeactivate, enrollment)
	return nil
}

func (s *EnrollmentService) record(ctx context.Context, actorID, action string, enrollment *models.Enrollment) {
	payload, _ := json.Marshal(enrollment)
	entry := models.AuditLog{
		Action:     action,
		Resource:   "enrollment",
		ResourceID: &enrollment.ID,
		NewValues:  payload,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	s.audit.Record(ctx, entry)
}
