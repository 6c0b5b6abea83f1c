package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/internal/repository"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

type absenceCreditRepository interface {
	Create(ctx context.Context, credit *models.AbsenceCredit) error
	FindByID(ctx context.Context, id string) (*models.AbsenceCredit, error)
	List(ctx context.Context, filter models.CreditFilter) ([]models.AbsenceCredit, error)
	ListUsages(ctx context.Context, studentID string) ([]models.CreditUsage, error)
	FindUsage(ctx context.Context, id string) (*models.CreditUsage, error)
	ConfirmAttendance(ctx context.Context, id string, confirmed bool) error
	InTx(ctx context.Context, fn func(repository.CreditTx) error) error
}

// AbsenceCreditService grants make-up credits and consumes them on
// session dates.
type AbsenceCreditService struct {
	repo      absenceCreditRepository
	students  studentLookup
	slots     slotLookup
	validator *validation.Validator
	audit     auditRecorder
	logger    *zap.Logger
}

// NewAbsenceCreditService constructs the service. audit may be nil.
func NewAbsenceCreditService(repo absenceCreditRepository, students studentLookup, slots slotLookup, validate *validation.Validator, audit auditRecorder, logger *zap.Logger) *AbsenceCreditService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &AbsenceCreditService{repo: repo, students: students, slots: slots, validator: validate, audit: audit, logger: logger}
}

// Grant records an absence that entitles the student to a make-up session.
func (s *AbsenceCreditService) Grant(ctx context.Context, req dto.GrantCreditRequest) (*models.AbsenceCredit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	absenceDate, err := parseDay(req.AbsenceDate, "absenceDate")
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseOptionalDay(req.ExpiresAt, "expiresAt")
	if err != nil {
		return nil, err
	}
	if expiresAt != nil && expiresAt.Before(absenceDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expiresAt must not be before absenceDate")
	}
	if _, err := s.students.FindByID(ctx, strings.TrimSpace(req.StudentID)); err != nil {
		return nil, s.referenceError(err, "student not found")
	}
	origin := trimmedOrNil(req.OriginSlotID)
	if origin != nil {
		if _, err := s.slots.FindByID(ctx, *origin); err != nil {
			return nil, s.referenceError(err, "origin slot not found")
		}
	}

	credit := &models.AbsenceCredit{
		StudentID:    strings.TrimSpace(req.StudentID),
		OriginSlotID: origin,
		AbsenceDate:  absenceDate,
		Reason:       strings.TrimSpace(req.Reason),
		ExpiresAt:    expiresAt,
	}
	if err := s.repo.Create(ctx, credit); err != nil {
		return nil, internalError(err, "failed to grant credit")
	}
	return credit, nil
}

// ListCredits returns a student's credits, newest absence first.
func (s *AbsenceCreditService) ListCredits(ctx context.Context, studentID string, availableOnly bool) ([]models.AbsenceCredit, error) {
	credits, err := s.repo.List(ctx, models.CreditFilter{StudentID: strings.TrimSpace(studentID), AvailableOnly: availableOnly})
	if err != nil {
		return nil, internalError(err, "failed to list credits")
	}
	if credits == nil {
		credits = []models.AbsenceCredit{}
	}
	return credits, nil
}

// ListUsages returns a student's consumed credits.
func (s *AbsenceCreditService) ListUsages(ctx context.Context, studentID string) ([]models.CreditUsage, error) {
	usages, err := s.repo.ListUsages(ctx, strings.TrimSpace(studentID))
	if err != nil {
		return nil, internalError(err, "failed to list credit usages")
	}
	if usages == nil {
		usages = []models.CreditUsage{}
	}
	return usages, nil
}

// Use consumes a credit for a session. The credit row stays locked until
// the usage is written, so a credit is never spent twice.
func (s *AbsenceCreditService) Use(ctx context.Context, creditID string, req dto.UseCreditRequest, actorID string) (*models.CreditUsage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	sessionDate, err := parseDay(req.SessionDate, "sessionDate")
	if err != nil {
		return nil, err
	}
	slotID := trimmedOrNil(req.SlotID)
	if slotID != nil {
		slot, err := s.slots.FindByID(ctx, *slotID)
		if err != nil {
			return nil, s.referenceError(err, "schedule slot not found")
		}
		if int(sessionDate.Weekday()) != slot.DayOfWeek {
			return nil, appErrors.Clone(appErrors.ErrValidation, "sessionDate does not fall on the slot's weekday ("+models.Weekdays[slot.DayOfWeek]+")")
		}
	}

	var usage *models.CreditUsage
	err = s.repo.InTx(ctx, func(tx repository.CreditTx) error {
		credit, err := tx.LockCredit(ctx, creditID)
		if err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "credit not found")
			}
			return internalError(err, "failed to lock credit")
		}
		if credit.Consumed {
			return appErrors.Clone(appErrors.ErrConflict, "credit already used")
		}
		if credit.ExpiredAt(sessionDate) {
			return appErrors.Clone(appErrors.ErrValidation, "credit expired before the session date")
		}

		holiday, err := tx.IsHoliday(ctx, sessionDate)
		if err != nil {
			return internalError(err, "failed to check holidays")
		}
		if holiday {
			return appErrors.Clone(appErrors.ErrConflict, "session date is a holiday")
		}
		if slotID != nil {
			blocked, err := tx.IsBlocked(ctx, *slotID, sessionDate)
			if err != nil {
				return internalError(err, "failed to check blocked slots")
			}
			if blocked {
				return appErrors.Clone(appErrors.ErrConflict, "schedule slot is blocked on the session date")
			}
		}

		usage = &models.CreditUsage{
			CreditID:    credit.ID,
			StudentID:   credit.StudentID,
			SessionDate: sessionDate,
			SlotID:      slotID,
		}
		if err := tx.InsertUsage(ctx, usage); err != nil {
			return internalError(err, "failed to record credit usage")
		}
		if err := tx.SetCreditConsumed(ctx, credit.ID, true); err != nil {
			return internalError(err, "failed to consume credit")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(usage)
	entry := models.AuditLog{Action: models.AuditActionCreditUse, Resource: "absence_credit", ResourceID: &usage.CreditID, NewValues: payload}
	if actorID != "" {
		entry.UserID = &actorID
	}
	s.audit.Record(ctx, entry)
	return usage, nil
}

// ConfirmAttendance flags whether the make-up session was attended.
func (s *AbsenceCreditService) ConfirmAttendance(ctx context.Context, usageID string, req dto.ConfirmAttendanceRequest) (*models.CreditUsage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	usage, err := s.repo.FindUsage(ctx, usageID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "credit usage not found")
		}
		return nil, internalError(err, "failed to load credit usage")
	}
	if err := s.repo.ConfirmAttendance(ctx, usageID, *req.Confirmed); err != nil {
		return nil, internalError(err, "failed to confirm attendance")
	}
	usage.AttendanceConfirmed = *req.Confirmed
	return usage, nil
}

// RevokeUsage deletes a usage and makes its credit available again.
func (s *AbsenceCreditService) RevokeUsage(ctx context.Context, usageID, actorID string) error {
	var revoked *models.CreditUsage
	err := s.repo.InTx(ctx, func(tx repository.CreditTx) error {
		usage, err := tx.LockUsage(ctx, usageID)
		if err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "credit usage not found")
			}
			return internalError(err, "failed to lock credit usage")
		}
		if err := tx.DeleteUsage(ctx, usage.ID); err != nil {
			return internalError(err, "failed to delete credit usage")
		}
		if err := tx.SetCreditConsumed(ctx, usage.CreditID, false); err != nil {
			return internalError(err, "failed to restore credit")
		}
		revoked = usage
		return nil
	})
	if err != nil {
		return err
	}

	payload, _ := json.Marshal(revoked)
	entry := models.AuditLog{Action: models.AuditActionCreditRevoke, Resource: "absence_credit", ResourceID: &revoked.CreditID, OldValues: payload}
	if actorID != "" {
		entry.UserID = &actorID
	}
	s.audit.Record(ctx, entry)
	return nil
}

func (s *AbsenceCreditService) referenceError(err error, message string) error {
	if isNoRows(err) {
		return appErrors.Clone(appErrors.ErrValidation, message)
	}
	return internalError(err, "failed to resolve credit references")
}
