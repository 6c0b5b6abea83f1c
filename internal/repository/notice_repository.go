package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-agenda-api/internal/models"
)

const noticeColumns = `id, title, message, audience, pinned, active, starts_at, ends_at, created_by, created_at, updated_at`

// NoticeRepository provides persistence for board notices.
type NoticeRepository struct {
	db *sqlx.DB
}

// NewNoticeRepository creates the repository.
func NewNoticeRepository(db *sqlx.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// List returns notices for the admin listing.
func (r *NoticeRepository) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Audience != "" {
		args = append(args, filter.Audience)
		where = append(where, fmt.Sprintf("audience = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("active = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM notices WHERE %s ORDER BY pinned DESC, starts_at DESC LIMIT %d OFFSET %d`, noticeColumns, whereClause, size, offset)
	var notices []models.Notice
	if err := r.db.SelectContext(ctx, &notices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notices: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM notices WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count notices: %w", err)
	}
	return notices, total, nil
}

// ListActive returns notices visible at the given instant, pinned first.
func (r *NoticeRepository) ListActive(ctx context.Context, at time.Time) ([]models.Notice, error) {
	query := `SELECT ` + noticeColumns + ` FROM notices
WHERE active = TRUE AND starts_at <= $1 AND (ends_at IS NULL OR ends_at > $1)
ORDER BY pinned DESC, starts_at DESC`
	var notices []models.Notice
	if err := r.db.SelectContext(ctx, &notices, query, at); err != nil {
		return nil, fmt.Errorf("list active notices: %w", err)
	}
	return notices, nil
}

// FindByID returns a notice by identifier.
func (r *NoticeRepository) FindByID(ctx context.Context, id string) (*models.Notice, error) {
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, `SELECT `+noticeColumns+` FROM notices WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &notice, nil
}

// Create inserts a notice.
func (r *NoticeRepository) Create(ctx context.Context, notice *models.Notice) error {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = now
	}
	notice.UpdatedAt = now
	const query = `INSERT INTO notices (id, title, message, audience, pinned, active, starts_at, ends_at, created_by, created_at, updated_at)
VALUES (:id, :title, :message, :audience, :pinned, :active, :starts_at, :ends_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notice); err != nil {
		return fmt.Errorf("create notice: %w", err)
	}
	return nil
}

// Update modifies an existing notice.
func (r *NoticeRepository) Update(ctx context.Context, notice *models.Notice) error {
	notice.UpdatedAt = time.Now().UTC()
	const query = `UPDATE notices SET title = :title, message = :message, audience = :audience, pinned = :pinned, active = :active,
starts_at = :starts_at, ends_at = :ends_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, notice); err != nil {
		return fmt.Errorf("update notice: %w", err)
	}
	return nil
}

// Delete removes a notice.
func (r *NoticeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM notices WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	return nil
}
