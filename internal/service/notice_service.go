package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/pkg/cache"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

type noticeRepository interface {
	List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error)
	ListActive(ctx context.Context, at time.Time) ([]models.Notice, error)
	FindByID(ctx context.Context, id string) (*models.Notice, error)
	Create(ctx context.Context, notice *models.Notice) error
	Update(ctx context.Context, notice *models.Notice) error
	Delete(ctx context.Context, id string) error
}

// NoticeService manages the panel's notice board.
type NoticeService struct {
	repo      noticeRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewNoticeService constructs the service. cacheSvc may be nil.
func NewNoticeService(repo noticeRepository, cacheSvc *CacheService, validate *validation.Validator, logger *zap.Logger) *NoticeService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoticeService{
		repo:      repo,
		cache:     cacheSvc,
		cacheTTL:  time.Minute,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns notices with pagination metadata.
func (s *NoticeService) List(ctx context.Context, query dto.NoticeQuery) ([]models.Notice, *models.Pagination, error) {
	filter := models.NoticeFilter{
		Audience: models.NoticeAudience(strings.ToLower(strings.TrimSpace(query.Audience))),
		Active:   query.Active,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	notices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list notices")
	}
	if notices == nil {
		notices = []models.Notice{}
	}
	return notices, pagination(filter.Page, filter.PageSize, total, 20, 100), nil
}

// ListActive returns the notices visible right now, pinned first. The result
// is cached for a short window because the visibility changes with time.
func (s *NoticeService) ListActive(ctx context.Context) ([]models.Notice, error) {
	var notices []models.Notice
	if hit, _ := s.cache.Get(ctx, cache.KeyActiveNotices, &notices); hit {
		return notices, nil
	}
	notices, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		return nil, internalError(err, "failed to list active notices")
	}
	if notices == nil {
		notices = []models.Notice{}
	}
	_ = s.cache.Set(ctx, cache.KeyActiveNotices, notices, s.cacheTTL)
	return notices, nil
}

// Get returns a notice.
func (s *NoticeService) Get(ctx context.Context, id string) (*models.Notice, error) {
	notice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, internalError(err, "failed to load notice")
	}
	return notice, nil
}

// Create publishes a notice.
func (s *NoticeService) Create(ctx context.Context, req dto.NoticeRequest, actorID string) (*models.Notice, error) {
	notice := &models.Notice{Active: true, CreatedBy: actorID}
	if err := s.apply(notice, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, notice); err != nil {
		return nil, internalError(err, "failed to create notice")
	}
	s.cache.Evict(ctx, cache.KeyActiveNotices)
	return notice, nil
}

// Update edits a notice.
func (s *NoticeService) Update(ctx context.Context, id string, req dto.NoticeRequest) (*models.Notice, error) {
	notice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(notice, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, notice); err != nil {
		return nil, internalError(err, "failed to update notice")
	}
	s.cache.Evict(ctx, cache.KeyActiveNotices)
	return notice, nil
}

func (s *NoticeService) apply(notice *models.Notice, req dto.NoticeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	startsAt := s.now()
	if req.StartsAt != nil {
		startsAt = req.StartsAt.UTC()
	} else if !notice.StartsAt.IsZero() {
		startsAt = notice.StartsAt
	}
	if req.EndsAt != nil && !req.EndsAt.After(startsAt) {
		return appErrors.Clone(appErrors.ErrValidation, "endsAt must be after startsAt")
	}

	audience := models.NoticeAudience(req.Audience)
	if audience == "" {
		audience = models.NoticeAudienceAll
	}
	notice.Title = strings.TrimSpace(req.Title)
	notice.Message = strings.TrimSpace(req.Message)
	notice.Audience = audience
	notice.Pinned = req.Pinned
	notice.Active = boolOr(req.Active, notice.Active)
	notice.StartsAt = startsAt
	notice.EndsAt = nil
	if req.EndsAt != nil {
		ends := req.EndsAt.UTC()
		notice.EndsAt = &ends
	}
	return nil
}

// Delete removes a notice.
func (s *NoticeService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete notice")
	}
	s.cache.Evict(ctx, cache.KeyActiveNotices)
	return nil
}
