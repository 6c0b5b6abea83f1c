package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-agenda-api/internal/models"
)

const modalityColumns = `id, name, description, default_capacity, color, active, created_at, updated_at`

// ModalityRepository persists class types.
type ModalityRepository struct {
	db *sqlx.DB
}

// NewModalityRepository constructs the repository.
func NewModalityRepository(db *sqlx.DB) *ModalityRepository {
	return &ModalityRepository{db: db}
}

// List returns all modalities, optionally only active ones.
func (r *ModalityRepository) List(ctx context.Context, activeOnly bool) ([]models.Modality, error) {
	query := `SELECT ` + modalityColumns + ` FROM modalities`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`
	var modalities []models.Modality
	if err := r.db.SelectContext(ctx, &modalities, query); err != nil {
		return nil, fmt.Errorf("list modalities: %w", err)
	}
	return modalities, nil
}

// FindByID returns a modality by identifier.
func (r *ModalityRepository) FindByID(ctx context.Context, id string) (*models.Modality, error) {
	var modality models.Modality
	if err := r.db.GetContext(ctx, &modality, `SELECT `+modalityColumns+` FROM modalities WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &modality, nil
}

// ExistsByName checks for a modality with the same name, ignoring case.
func (r *ModalityRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := `SELECT 1 FROM modalities WHERE LOWER(name) = LOWER($1)`
	args := []interface{}{name}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	return existsTx(ctx, r.db, "check modality name", query+` LIMIT 1`, args...)
}

// Create inserts a modality.
func (r *ModalityRepository) Create(ctx context.Context, modality *models.Modality) error {
	if modality.ID == "" {
		modality.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if modality.CreatedAt.IsZero() {
		modality.CreatedAt = now
	}
	modality.UpdatedAt = now
	const query = `INSERT INTO modalities (id, name, description, default_capacity, color, active, created_at, updated_at)
VALUES (:id, :name, :description, :default_capacity, :color, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, modality); err != nil {
		return fmt.Errorf("create modality: %w", err)
	}
	return nil
}

// Update modifies a modality.
func (r *ModalityRepository) Update(ctx context.Context, modality *models.Modality) error {
	modality.UpdatedAt = time.Now().UTC()
	const query = `UPDATE modalities SET name = :name, description = :description, default_capacity = :default_capacity,
color = :color, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, modality); err != nil {
		return fmt.Errorf("update modality: %w", err)
	}
	return nil
}

// Deactivate soft deletes a modality.
func (r *ModalityRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE modalities SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate modality: %w", err)
	}
	return nil
}
