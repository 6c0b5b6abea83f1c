package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/pkg/cache"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

type modalityRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Modality, error)
	FindByID(ctx context.Context, id string) (*models.Modality, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, modality *models.Modality) error
	Update(ctx context.Context, modality *models.Modality) error
	Deactivate(ctx context.Context, id string) error
}

// ModalityService manages class types. The full list is read through the
// cache and evicted on every write.
type ModalityService struct {
	repo      modalityRepository
	cache     *CacheService
	validator *validation.Validator
	logger    *zap.Logger
}

// NewModalityService constructs the service. cache may be nil.
func NewModalityService(repo modalityRepository, cacheSvc *CacheService, validate *validation.Validator, logger *zap.Logger) *ModalityService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModalityService{repo: repo, cache: cacheSvc, validator: validate, logger: logger}
}

// List returns modalities ordered by name.
func (s *ModalityService) List(ctx context.Context, activeOnly bool) ([]models.Modality, error) {
	var all []models.Modality
	if hit, _ := s.cache.Get(ctx, cache.KeyModalities, &all); !hit {
		loaded, err := s.repo.List(ctx, false)
		if err != nil {
			return nil, internalError(err, "failed to list modalities")
		}
		all = loaded
		_ = s.cache.Set(ctx, cache.KeyModalities, all, 0)
	}

	result := make([]models.Modality, 0, len(all))
	for _, m := range all {
		if activeOnly && !m.Active {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

// Get returns a modality by id.
func (s *ModalityService) Get(ctx context.Context, id string) (*models.Modality, error) {
	modality, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "modality not found")
		}
		return nil, internalError(err, "failed to load modality")
	}
	return modality, nil
}

// Create registers a modality with a unique name.
func (s *ModalityService) Create(ctx context.Context, req dto.ModalityRequest) (*models.Modality, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	modality := &models.Modality{Active: true}
	if err := s.apply(ctx, modality, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, modality); err != nil {
		return nil, internalError(err, "failed to create modality")
	}
	s.cache.Evict(ctx, cache.KeyModalities)
	return modality, nil
}

// Update modifies a modality.
func (s *ModalityService) Update(ctx context.Context, id string, req dto.ModalityRequest) (*models.Modality, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	modality, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, modality, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, modality); err != nil {
		return nil, internalError(err, "failed to update modality")
	}
	s.cache.Evict(ctx, cache.KeyModalities)
	return modality, nil
}

func (s *ModalityService) apply(ctx context.Context, modality *models.Modality, req dto.ModalityRequest) error {
	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name, modality.ID)
	if err != nil {
		return internalError(err, "failed to validate modality name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "modality name already used")
	}
	modality.Name = name
	modality.Description = strings.TrimSpace(req.Description)
	modality.DefaultCapacity = req.DefaultCapacity
	modality.Color = trimmedOrNil(req.Color)
	modality.Active = boolOr(req.Active, modality.Active)
	return nil
}

// Deactivate hides a modality from new slots.
func (s *ModalityService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to deactivate modality")
	}
	s.cache.Evict(ctx, cache.KeyModalities)
	return nil
}
