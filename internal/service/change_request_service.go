package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/internal/repository"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

type changeRequestStore interface {
	Create(ctx context.Context, request *models.ChangeRequest) error
	FindByID(ctx context.Context, id string) (*models.ChangeRequest, error)
	List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, error)
	Reject(ctx context.Context, id, approverID, reason string, at time.Time) error
	InTx(ctx context.Context, fn func(repository.ChangeRequestTx) error) error
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type slotLookup interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleSlotDetail, error)
}

type enrollmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindActive(ctx context.Context, studentID, slotID string) (*models.Enrollment, error)
}

type transitionMetrics interface {
	RecordTransition(transition, outcome string)
	ObserveDBQuery(label string, duration time.Duration)
}

// ChangeRequestService drives the reschedule workflow: create, approve,
// reject and the compensating cancel.
type ChangeRequestService struct {
	repo        changeRequestStore
	students    studentLookup
	slots       slotLookup
	enrollments enrollmentLookup
	validator   *validation.Validator
	audit       auditRecorder
	metrics     transitionMetrics
	logger      *zap.Logger
	listLimit   int
	now         func() time.Time
}

// ChangeRequestOption configures the service.
type ChangeRequestOption func(*ChangeRequestService)

// WithChangeRequestAudit routes transition audit entries to recorder.
func WithChangeRequestAudit(recorder auditRecorder) ChangeRequestOption {
	return func(s *ChangeRequestService) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithChangeRequestMetrics enables transition counters.
func WithChangeRequestMetrics(metrics transitionMetrics) ChangeRequestOption {
	return func(s *ChangeRequestService) {
		s.metrics = metrics
	}
}

// WithChangeRequestListLimit overrides the default page size of List.
func WithChangeRequestListLimit(limit int) ChangeRequestOption {
	return func(s *ChangeRequestService) {
		if limit > 0 {
			s.listLimit = limit
		}
	}
}

// WithChangeRequestClock overrides the time source.
func WithChangeRequestClock(now func() time.Time) ChangeRequestOption {
	return func(s *ChangeRequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewChangeRequestService wires the workflow.
func NewChangeRequestService(repo changeRequestStore, students studentLookup, slots slotLookup, enrollments enrollmentLookup, validate *validation.Validator, logger *zap.Logger, opts ...ChangeRequestOption) *ChangeRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	svc := &ChangeRequestService{
		repo:        repo,
		students:    students,
		slots:       slots,
		enrollments: enrollments,
		validator:   validate,
		audit:       noopAudit{},
		logger:      logger,
		listLimit:   50,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create validates references and stores a pending request. Nothing is
// written when any reference fails to resolve.
func (s *ChangeRequestService) Create(ctx context.Context, req dto.CreateChangeRequest, actorID string) (result *models.ChangeRequest, err error) {
	defer func() { s.record("create", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.CurrentSlotID = strings.TrimSpace(req.CurrentSlotID)
	req.TargetSlotID = strings.TrimSpace(req.TargetSlotID)
	req.SourceEnrollmentID = strings.TrimSpace(req.SourceEnrollmentID)

	if req.CurrentSlotID == req.TargetSlotID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "targetSlotId must differ from currentSlotId")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, s.referenceError(err, "student not found")
	}
	if _, err := s.slots.FindByID(ctx, req.CurrentSlotID); err != nil {
		return nil, s.referenceError(err, "current slot not found")
	}
	target, err := s.slots.FindByID(ctx, req.TargetSlotID)
	if err != nil {
		return nil, s.referenceError(err, "target slot not found")
	}
	if !target.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target slot is inactive")
	}
	if _, err := s.enrollments.FindActive(ctx, req.StudentID, req.TargetSlotID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is already enrolled on the target slot")
	} else if !isNoRows(err) {
		return nil, internalError(err, "failed to check target enrollment")
	}

	source, err := s.resolveSource(ctx, req)
	if err != nil {
		return nil, err
	}

	request := &models.ChangeRequest{
		StudentID:          req.StudentID,
		SourceEnrollmentID: source.ID,
		CurrentSlotID:      req.CurrentSlotID,
		TargetSlotID:       req.TargetSlotID,
		Reason:             strings.TrimSpace(req.Reason),
		Status:             models.ChangeRequestPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, internalError(err, "failed to create change request")
	}

	s.emitAudit(ctx, actorID, models.AuditActionChangeRequestCreate, request.ID, nil, request)
	return request, nil
}

func (s *ChangeRequestService) resolveSource(ctx context.Context, req dto.CreateChangeRequest) (*models.Enrollment, error) {
	if req.SourceEnrollmentID == "" {
		enrollment, err := s.enrollments.FindActive(ctx, req.StudentID, req.CurrentSlotID)
		if err != nil {
			return nil, s.referenceError(err, "student has no active enrollment on the current slot")
		}
		return enrollment, nil
	}
	enrollment, err := s.enrollments.FindByID(ctx, req.SourceEnrollmentID)
	if err != nil {
		return nil, s.referenceError(err, "source enrollment not found")
	}
	if enrollment.StudentID != req.StudentID || enrollment.SlotID != req.CurrentSlotID || !enrollment.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source enrollment is not the student's active enrollment on the current slot")
	}
	return enrollment, nil
}

// Get returns a single request.
func (s *ChangeRequestService) Get(ctx context.Context, id string) (*models.ChangeRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, internalError(err, "failed to load change request")
	}
	return request, nil
}

// List returns requests newest first.
func (s *ChangeRequestService) List(ctx context.Context, query dto.ChangeRequestQuery) ([]models.ChangeRequest, error) {
	filter := models.ChangeRequestFilter{
		StudentID: strings.TrimSpace(query.StudentID),
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = s.listLimit
	}
	for _, raw := range strings.Split(query.Status, ",") {
		status := models.ChangeRequestStatus(strings.ToLower(strings.TrimSpace(raw)))
		if status == "" {
			continue
		}
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
		filter.Status = append(filter.Status, status)
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list change requests")
	}
	if requests == nil {
		requests = []models.ChangeRequest{}
	}
	return requests, nil
}

// Approve moves the student to the target slot. Everything happens in one
// transaction holding the request and target slot rows, so two approvals
// for the same slot cannot both pass the capacity check.
func (s *ChangeRequestService) Approve(ctx context.Context, id, approverID string) (result *models.ChangeRequest, err error) {
	defer func() { s.record("approve", err) }()

	var approved *models.ChangeRequest
	start := time.Now()
	err = s.repo.InTx(ctx, func(tx repository.ChangeRequestTx) error {
		request, err := tx.LockChangeRequest(ctx, id)
		if err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "change request not found")
			}
			return internalError(err, "failed to load change request")
		}
		if request.Status != models.ChangeRequestPending {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("change request is already %s", request.Status))
		}

		slot, err := tx.LockSlot(ctx, request.TargetSlotID)
		if err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "target slot not found")
			}
			return internalError(err, "failed to lock target slot")
		}
		if !slot.Active {
			return appErrors.Clone(appErrors.ErrConflict, "target slot is inactive")
		}

		existing, err := latestEnrollment(ctx, tx, request.StudentID, request.TargetSlotID)
		if err != nil {
			return err
		}
		preexisting := existing != nil && existing.Active
		if !preexisting {
			active, err := tx.CountActiveEnrollments(ctx, request.TargetSlotID)
			if err != nil {
				return internalError(err, "failed to count enrollments")
			}
			if slot.Full(active) {
				return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("target slot is full (%d/%d)", active, slot.Limit()))
			}
		}

		source, err := s.findSource(ctx, tx, request)
		if err != nil {
			return err
		}
		if source != nil && source.Active {
			if err := tx.SetEnrollmentActive(ctx, source.ID, false); err != nil {
				return internalError(err, "failed to deactivate source enrollment")
			}
		}

		targetID, err := activateTarget(ctx, tx, request, existing)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.MarkApproved(ctx, request.ID, approverID, targetID, preexisting, now); err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrConflict, "change request already processed")
			}
			return internalError(err, "failed to approve change request")
		}

		request.Status = models.ChangeRequestApproved
		request.ApprovedBy = &approverID
		request.TargetEnrollmentID = &targetID
		request.TargetPreexisting = preexisting
		request.UpdatedAt = now
		approved = request
		return nil
	})
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("change_request.approve", time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("change request approved",
		zap.String("change_request_id", approved.ID),
		zap.String("student_id", approved.StudentID),
		zap.String("target_slot_id", approved.TargetSlotID),
		zap.String("approved_by", approverID))
	s.emitAudit(ctx, approverID, models.AuditActionChangeRequestApprove, approved.ID, nil, approved)
	return approved, nil
}

// findSource resolves the enrollment being moved: the stored id first, then
// the student's enrollment on the current slot.
func (s *ChangeRequestService) findSource(ctx context.Context, tx repository.ChangeRequestTx, request *models.ChangeRequest) (*models.Enrollment, error) {
	if request.SourceEnrollmentID != "" {
		source, err := tx.FindEnrollment(ctx, request.SourceEnrollmentID)
		if err == nil {
			return source, nil
		}
		if !isNoRows(err) {
			return nil, internalError(err, "failed to load source enrollment")
		}
	}
	return latestEnrollment(ctx, tx, request.StudentID, request.CurrentSlotID)
}

func activateTarget(ctx context.Context, tx repository.ChangeRequestTx, request *models.ChangeRequest, existing *models.Enrollment) (string, error) {
	if existing != nil {
		if !existing.Active {
			if err := tx.SetEnrollmentActive(ctx, existing.ID, true); err != nil {
				return "", internalError(err, "failed to reactivate target enrollment")
			}
		}
		return existing.ID, nil
	}
	enrollment := &models.Enrollment{
		StudentID: request.StudentID,
		SlotID:    request.TargetSlotID,
		Active:    true,
		Notes:     "moved by change request " + request.ID,
	}
	if err := tx.InsertEnrollment(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", appErrors.Clone(appErrors.ErrConflict, "student is already enrolled on the target slot")
		}
		return "", internalError(err, "failed to create target enrollment")
	}
	return enrollment.ID, nil
}

func latestEnrollment(ctx context.Context, tx repository.EnrollmentTx, studentID, slotID string) (*models.Enrollment, error) {
	enrollment, err := tx.LatestEnrollment(ctx, studentID, slotID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, internalError(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// Reject closes a pending request without touching enrollments.
func (s *ChangeRequestService) Reject(ctx context.Context, id, approverID string, req dto.RejectChangeRequest) (result *models.ChangeRequest, err error) {
	defer func() { s.record("reject", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.RejectionReason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejectionReason is required")
	}

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ChangeRequestPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("change request is already %s", request.Status))
	}

	now := s.now()
	if err := s.repo.Reject(ctx, id, approverID, reason, now); err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "change request already processed")
		}
		return nil, internalError(err, "failed to reject change request")
	}

	request.Status = models.ChangeRequestRejected
	request.RejectionReason = &reason
	request.ApprovedBy = &approverID
	request.UpdatedAt = now
	s.emitAudit(ctx, approverID, models.AuditActionChangeRequestReject, request.ID, nil, request)
	return request, nil
}

// Cancel deletes a request. An approved request is first reversed: the
// source enrollment is reactivated and the target enrollment deactivated.
func (s *ChangeRequestService) Cancel(ctx context.Context, id, actorID string) (err error) {
	defer func() { s.record("cancel", err) }()

	var cancelled *models.ChangeRequest
	start := time.Now()
	err = s.repo.InTx(ctx, func(tx repository.ChangeRequestTx) error {
		request, err := tx.LockChangeRequest(ctx, id)
		if err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "change request not found")
			}
			return internalError(err, "failed to load change request")
		}

		if request.Status == models.ChangeRequestApproved {
			if err := s.restoreSource(ctx, tx, request); err != nil {
				return err
			}
			if err := s.releaseTarget(ctx, tx, request); err != nil {
				return err
			}
		}

		if err := tx.DeleteChangeRequest(ctx, request.ID); err != nil {
			return internalError(err, "failed to delete change request")
		}
		cancelled = request
		return nil
	})
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("change_request.cancel", time.Since(start))
	}
	if err != nil {
		return err
	}

	s.emitAudit(ctx, actorID, models.AuditActionChangeRequestCancel, cancelled.ID, cancelled, nil)
	return nil
}

func (s *ChangeRequestService) restoreSource(ctx context.Context, tx repository.ChangeRequestTx, request *models.ChangeRequest) error {
	source, err := s.findSource(ctx, tx, request)
	if err != nil {
		return err
	}
	if source == nil || source.Active {
		return nil
	}
	// The student may have been re-enrolled on the source slot since; a
	// second active row would break the one-active-per-pair rule.
	current, err := latestEnrollment(ctx, tx, request.StudentID, request.CurrentSlotID)
	if err != nil {
		return err
	}
	if current != nil && current.Active && current.ID != source.ID {
		return nil
	}
	if err := tx.SetEnrollmentActive(ctx, source.ID, true); err != nil {
		return internalError(err, "failed to reactivate source enrollment")
	}
	return nil
}

func (s *ChangeRequestService) releaseTarget(ctx context.Context, tx repository.ChangeRequestTx, request *models.ChangeRequest) error {
	if request.TargetPreexisting {
		return nil
	}
	var target *models.Enrollment
	if request.TargetEnrollmentID != nil && *request.TargetEnrollmentID != "" {
		found, err := tx.FindEnrollment(ctx, *request.TargetEnrollmentID)
		if err != nil && !isNoRows(err) {
			return internalError(err, "failed to load target enrollment")
		}
		target = found
	}
	if target == nil {
		found, err := latestEnrollment(ctx, tx, request.StudentID, request.TargetSlotID)
		if err != nil {
			return err
		}
		target = found
	}
	if target == nil || !target.Active {
		return nil
	}
	if err := tx.SetEnrollmentActive(ctx, target.ID, false); err != nil {
		return internalError(err, "failed to deactivate target enrollment")
	}
	return nil
}

func (s *ChangeRequestService) referenceError(err error, message string) error {
	if isNoRows(err) {
		return appErrors.Clone(appErrors.ErrValidation, message)
	}
	return internalError(err, "failed to resolve change request references")
}

func (s *ChangeRequestService) record(transition string, err error) {
	if s.metrics != nil {
		s.metrics.RecordTransition(transition, outcomeOf(err))
	}
	if err != nil && appErrors.FromError(err).Status >= 500 {
		s.logger.Error("change request transition failed", zap.String("transition", transition), zap.Error(err))
	}
}

func (s *ChangeRequestService) emitAudit(ctx context.Context, actorID, action, resourceID string, oldValue, newValue interface{}) {
	entry := models.AuditLog{
		Action:     action,
		Resource:   "change_request",
		ResourceID: &resourceID,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if oldValue != nil {
		entry.OldValues, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		entry.NewValues, _ = json.Marshal(newValue)
	}
	s.audit.Record(ctx, entry)
}
