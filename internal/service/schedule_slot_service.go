package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/export"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

type scheduleSlotRepository interface {
	List(ctx context.Context, filter models.ScheduleSlotFilter) ([]models.ScheduleSlotDetail, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleSlotDetail, error)
	HasOverlap(ctx context.Context, teacherID string, dayOfWeek int, start, end, excludeID string) (bool, error)
	Create(ctx context.Context, slot *models.ScheduleSlot) error
	Update(ctx context.Context, slot *models.ScheduleSlot) error
	SetFlags(ctx context.Context, id string, frozen, waiting, absent bool, notes string) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type modalityLookup interface {
	FindByID(ctx context.Context, id string) (*models.Modality, error)
}

type slotEnrollments interface {
	ExistsForSlot(ctx context.Context, slotID string) (bool, error)
	ActiveRoster(ctx context.Context, slotID string) ([]models.EnrollmentDetail, error)
}

type slotChangeRequests interface {
	ExistsForSlot(ctx context.Context, slotID string) (bool, error)
}

// ScheduleSlotService manages the weekly grid.
type ScheduleSlotService struct {
	repo        scheduleSlotRepository
	teachers    teacherLookup
	modalities  modalityLookup
	enrollments slotEnrollments
	requests    slotChangeRequests
	validator   *validation.Validator
	logger      *zap.Logger
}

// NewScheduleSlotService constructs the service.
func NewScheduleSlotService(repo scheduleSlotRepository, teachers teacherLookup, modalities modalityLookup, enrollments slotEnrollments, requests slotChangeRequests, validate *validation.Validator, logger *zap.Logger) *ScheduleSlotService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleSlotService{
		repo:        repo,
		teachers:    teachers,
		modalities:  modalities,
		enrollments: enrollments,
		requests:    requests,
		validator:   validate,
		logger:      logger,
	}
}

// List returns slots ordered by day and start time.
func (s *ScheduleSlotService) List(ctx context.Context, query dto.ScheduleSlotQuery) ([]models.ScheduleSlotDetail, error) {
	if query.DayOfWeek != nil && (*query.DayOfWeek < 0 || *query.DayOfWeek > 6) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dayOfWeek must be between 0 and 6")
	}
	slots, err := s.repo.List(ctx, models.ScheduleSlotFilter{
		TeacherID:  strings.TrimSpace(query.TeacherID),
		ModalityID: strings.TrimSpace(query.ModalityID),
		DayOfWeek:  query.DayOfWeek,
		Active:     query.Active,
	})
	if err != nil {
		return nil, internalError(err, "failed to list schedule slots")
	}
	if slots == nil {
		slots = []models.ScheduleSlotDetail{}
	}
	return slots, nil
}

// Get returns a slot with its teacher, modality and occupancy.
func (s *ScheduleSlotService) Get(ctx context.Context, id string) (*models.ScheduleSlotDetail, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule slot not found")
		}
		return nil, internalError(err, "failed to load schedule slot")
	}
	return slot, nil
}

// Create adds a recurring slot.
func (s *ScheduleSlotService) Create(ctx context.Context, req dto.ScheduleSlotRequest) (*models.ScheduleSlot, error) {
	slot := &models.ScheduleSlot{Active: true}
	if err := s.apply(ctx, slot, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, internalError(err, "failed to create schedule slot")
	}
	return slot, nil
}

// Update rewrites a slot's schedule, teacher, modality and capacity.
func (s *ScheduleSlotService) Update(ctx context.Context, id string, req dto.ScheduleSlotRequest) (*models.ScheduleSlot, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	slot := detail.ScheduleSlot
	if err := s.apply(ctx, &slot, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &slot); err != nil {
		return nil, internalError(err, "failed to update schedule slot")
	}
	return &slot, nil
}

func (s *ScheduleSlotService) apply(ctx context.Context, slot *models.ScheduleSlot, req dto.ScheduleSlotRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	start, end := clockMinutes(req.StartTime), clockMinutes(req.EndTime)
	if start >= end {
		return appErrors.Clone(appErrors.ErrValidation, "startTime must be before endTime")
	}

	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrValidation, "teacher not found")
		}
		return internalError(err, "failed to load teacher")
	}
	if !teacher.Active {
		return appErrors.Clone(appErrors.ErrValidation, "teacher is inactive")
	}
	modality, err := s.modalities.FindByID(ctx, req.ModalityID)
	if err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrValidation, "modality not found")
		}
		return internalError(err, "failed to load modality")
	}
	if !modality.Active {
		return appErrors.Clone(appErrors.ErrValidation, "modality is inactive")
	}

	active := boolOr(req.Active, slot.Active)
	if active {
		overlap, err := s.repo.HasOverlap(ctx, teacher.ID, *req.DayOfWeek, req.StartTime, req.EndTime, slot.ID)
		if err != nil {
			return internalError(err, "failed to check slot overlap")
		}
		if overlap {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s already teaches on %s between %s and %s",
				teacher.Name, models.Weekdays[*req.DayOfWeek], req.StartTime, req.EndTime))
		}
	}

	slot.TeacherID = teacher.ID
	slot.ModalityID = modality.ID
	slot.DayOfWeek = *req.DayOfWeek
	slot.StartTime = req.StartTime
	slot.EndTime = req.EndTime
	slot.Capacity = req.Capacity
	slot.Notes = strings.TrimSpace(req.Notes)
	slot.Active = active
	return nil
}

// SetFlags updates the frozen, waiting and absent markers.
func (s *ScheduleSlotService) SetFlags(ctx context.Context, id string, req dto.SlotFlagsRequest) (*models.ScheduleSlotDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.SetFlags(ctx, id, req.Frozen, req.Waiting, req.Absent, strings.TrimSpace(req.Notes)); err != nil {
		return nil, internalError(err, "failed to update slot flags")
	}
	return s.Get(ctx, id)
}

// Remove soft-deletes a slot that is referenced by enrollments or change
// requests and hard-deletes it otherwise. It reports whether the row was
// removed.
func (s *ScheduleSlotService) Remove(ctx context.Context, id string) (bool, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	referenced, err := s.enrollments.ExistsForSlot(ctx, id)
	if err != nil {
		return false, internalError(err, "failed to check slot enrollments")
	}
	if !referenced {
		referenced, err = s.requests.ExistsForSlot(ctx, id)
		if err != nil {
			return false, internalError(err, "failed to check slot change requests")
		}
	}

	if referenced {
		if err := s.repo.Deactivate(ctx, id); err != nil {
			return false, internalError(err, "failed to deactivate schedule slot")
		}
		s.logger.Info("schedule slot deactivated", zap.String("slot_id", id))
		return false, nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return false, internalError(err, "failed to delete schedule slot")
	}
	s.logger.Info("schedule slot deleted", zap.String("slot_id", id))
	return true, nil
}

// Occupancy reports the seats left on a slot. Available is nil for
// unlimited slots.
func (s *ScheduleSlotService) Occupancy(ctx context.Context, id string) (*models.Occupancy, error) {
	slot, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	capacity := models.SlotCapacity{SlotID: slot.ID, Active: slot.Active, Capacity: slot.Capacity, DefaultCapacity: slot.DefaultCapacity}
	occupancy := &models.Occupancy{SlotID: slot.ID, Capacity: capacity.Limit(), Active: slot.ActiveEnrollments}
	if limit := capacity.Limit(); limit > 0 {
		available := limit - slot.ActiveEnrollments
		if available < 0 {
			available = 0
		}
		occupancy.Available = &available
	}
	return occupancy, nil
}

// Roster renders the active students of a slot.
func (s *ScheduleSlotService) Roster(ctx context.Context, id, rawFormat string) ([]byte, export.Format, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	slot, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	roster, err := s.enrollments.ActiveRoster(ctx, id)
	if err != nil {
		return nil, "", internalError(err, "failed to load roster")
	}

	data := export.Dataset{
		Title:       slot.Label(),
		Headers:     []string{"Student", "Email", "Enrolled since"},
		GeneratedAt: time.Now().UTC(),
	}
	for _, entry := range roster {
		email := ""
		if entry.StudentEmail != nil {
			email = *entry.StudentEmail
		}
		data.Rows = append(data.Rows, map[string]string{
			"Student":        entry.StudentName,
			"Email":          email,
			"Enrolled since": entry.CreatedAt.Format(dayLayout),
		})
	}
	content, err := export.Render(format, data)
	if err != nil {
		return nil, "", internalError(err, "failed to render roster")
	}
	return content, format, nil
}
