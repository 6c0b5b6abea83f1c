package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/internal/repository"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

type calendarRepository interface {
	ListHolidays(ctx context.Context, rng models.DateRange) ([]models.Holiday, error)
	CreateHoliday(ctx context.Context, holiday *models.Holiday) error
	DeleteHoliday(ctx context.Context, id string) (bool, error)
	ListBlockedSlots(ctx context.Context, slotID string, rng models.DateRange) ([]models.BlockedSlot, error)
	CreateBlockedSlot(ctx context.Context, blocked *models.BlockedSlot) error
	DeleteBlockedSlot(ctx context.Context, id string) (bool, error)
}

// CalendarService manages holidays and blocked slot occurrences.
type CalendarService struct {
	repo      calendarRepository
	slots     slotLookup
	validator *validation.Validator
	logger    *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(repo calendarRepository, slots slotLookup, validate *validation.Validator, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, slots: slots, validator: validate, logger: logger}
}

func (s *CalendarService) dateRange(query dto.CalendarQuery) (models.DateRange, error) {
	from, err := parseOptionalDay(&query.From, "from")
	if err != nil {
		return models.DateRange{}, err
	}
	to, err := parseOptionalDay(&query.To, "to")
	if err != nil {
		return models.DateRange{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return models.DateRange{}, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return models.DateRange{From: from, To: to}, nil
}

// ListHolidays returns holidays within the optional range.
func (s *CalendarService) ListHolidays(ctx context.Context, query dto.CalendarQuery) ([]models.Holiday, error) {
	rng, err := s.dateRange(query)
	if err != nil {
		return nil, err
	}
	holidays, err := s.repo.ListHolidays(ctx, rng)
	if err != nil {
		return nil, internalError(err, "failed to list holidays")
	}
	if holidays == nil {
		holidays = []models.Holiday{}
	}
	return holidays, nil
}

// CreateHoliday registers a closed day. A date holds at most one holiday.
func (s *CalendarService) CreateHoliday(ctx context.Context, req dto.HolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	day, err := parseDay(req.Date, "date")
	if err != nil {
		return nil, err
	}
	holiday := &models.Holiday{Date: day, Name: strings.TrimSpace(req.Name)}
	if err := s.repo.CreateHoliday(ctx, holiday); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a holiday already exists on "+req.Date)
		}
		return nil, internalError(err, "failed to create holiday")
	}
	return holiday, nil
}

// DeleteHoliday removes a holiday.
func (s *CalendarService) DeleteHoliday(ctx context.Context, id string) error {
	removed, err := s.repo.DeleteHoliday(ctx, id)
	if err != nil {
		return internalError(err, "failed to delete holiday")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
	}
	return nil
}

// ListBlockedSlots returns blocked occurrences, optionally for one slot.
func (s *CalendarService) ListBlockedSlots(ctx context.Context, query dto.CalendarQuery) ([]models.BlockedSlot, error) {
	rng, err := s.dateRange(query)
	if err != nil {
		return nil, err
	}
	blocked, err := s.repo.ListBlockedSlots(ctx, strings.TrimSpace(query.SlotID), rng)
	if err != nil {
		return nil, internalError(err, "failed to list blocked slots")
	}
	if blocked == nil {
		blocked = []models.BlockedSlot{}
	}
	return blocked, nil
}

// BlockSlot cancels one occurrence of a slot.
func (s *CalendarService) BlockSlot(ctx context.Context, req dto.BlockedSlotRequest, actorID string) (*models.BlockedSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	day, err := parseDay(req.Date, "date")
	if err != nil {
		return nil, err
	}
	slot, err := s.slots.FindByID(ctx, strings.TrimSpace(req.SlotID))
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "schedule slot not found")
		}
		return nil, internalError(err, "failed to load schedule slot")
	}
	if int(day.Weekday()) != slot.DayOfWeek {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date does not fall on the slot's weekday ("+models.Weekdays[slot.DayOfWeek]+")")
	}

	blocked := &models.BlockedSlot{
		SlotID:    slot.ID,
		Date:      day,
		Reason:    strings.TrimSpace(req.Reason),
		CreatedBy: actorID,
	}
	if err := s.repo.CreateBlockedSlot(ctx, blocked); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "slot is already blocked on "+req.Date)
		}
		return nil, internalError(err, "failed to block slot")
	}
	return blocked, nil
}

// UnblockSlot removes a blocked occurrence.
func (s *CalendarService) UnblockSlot(ctx context.Context, id string) error {
	removed, err := s.repo.DeleteBlockedSlot(ctx, id)
	if err != nil {
		return internalError(err, "failed to delete blocked slot")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "blocked slot not found")
	}
	return nil
}
