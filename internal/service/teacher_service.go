package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Deactivate(ctx context.Context, id string) error
}

// TeacherService manages instructors.
type TeacherService struct {
	repo      teacherRepository
	validator *validation.Validator
	logger    *zap.Logger
}

// NewTeacherService constructs the service.
func NewTeacherService(repo teacherRepository, validate *validation.Validator, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, validator: validate, logger: logger}
}

// List returns teachers with pagination metadata.
func (s *TeacherService) List(ctx context.Context, query dto.ListQuery) ([]models.Teacher, *models.Pagination, error) {
	filter := models.TeacherFilter{
		Search:   strings.TrimSpace(query.Search),
		Active:   query.Active,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list teachers")
	}
	if teachers == nil {
		teachers = []models.Teacher{}
	}
	return teachers, pagination(filter.Page, filter.PageSize, total, 20, 100), nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, internalError(err, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a teacher.
func (s *TeacherService) Create(ctx context.Context, req dto.TeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	teacher := &models.Teacher{Active: true}
	applyTeacher(teacher, req)
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, internalError(err, "failed to create teacher")
	}
	return teacher, nil
}

// Update modifies a teacher.
func (s *TeacherService) Update(ctx context.Context, id string, req dto.TeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyTeacher(teacher, req)
	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, internalError(err, "failed to update teacher")
	}
	return teacher, nil
}

func applyTeacher(teacher *models.Teacher, req dto.TeacherRequest) {
	teacher.Name = strings.TrimSpace(req.Name)
	teacher.Email = trimmedOrNil(req.Email)
	teacher.Phone = trimmedOrNil(req.Phone)
	teacher.Color = trimmedOrNil(req.Color)
	teacher.Active = boolOr(req.Active, teacher.Active)
}

// Deactivate marks a teacher inactive. Their slots stay as they are.
func (s *TeacherService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to deactivate teacher")
	}
	return nil
}
