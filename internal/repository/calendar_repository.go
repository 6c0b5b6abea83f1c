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

// CalendarRepository persists holidays and blocked slot occurrences.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

func dateRangeClause(column string, rng models.DateRange, args []interface{}) ([]string, []interface{}) {
	where := []string{"1=1"}
	if rng.From != nil {
		args = append(args, *rng.From)
		where = append(where, fmt.Sprintf("%s >= $%d::date", column, len(args)))
	}
	if rng.To != nil {
		args = append(args, *rng.To)
		where = append(where, fmt.Sprintf("%s <= $%d::date", column, len(args)))
	}
	return where, args
}

// ListHolidays returns holidays in the range ordered by date.
func (r *CalendarRepository) ListHolidays(ctx context.Context, rng models.DateRange) ([]models.Holiday, error) {
	where, args := dateRangeClause("date", rng, nil)
	query := fmt.Sprintf("SELECT id, date, name, created_at FROM holidays WHERE %s ORDER BY date ASC", strings.Join(where, " AND "))
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, args...); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// CreateHoliday inserts a holiday. Dates are unique.
func (r *CalendarRepository) CreateHoliday(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	if holiday.CreatedAt.IsZero() {
		holiday.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO holidays (id, date, name, created_at) VALUES (:id, :date, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// DeleteHoliday removes a holiday and reports whether a row was removed.
func (r *CalendarRepository) DeleteHoliday(ctx context.Context, id string) (bool, error) {
	return r.deleteByID(ctx, "holidays", id)
}

// ListBlockedSlots returns blocked occurrences, optionally for one slot.
func (r *CalendarRepository) ListBlockedSlots(ctx context.Context, slotID string, rng models.DateRange) ([]models.BlockedSlot, error) {
	var args []interface{}
	if slotID != "" {
		args = append(args, slotID)
	}
	where, args := dateRangeClause("date", rng, args)
	if slotID != "" {
		where = append(where, "slot_id = $1")
	}
	query := fmt.Sprintf("SELECT id, slot_id, date, reason, created_by, created_at FROM blocked_slots WHERE %s ORDER BY date ASC", strings.Join(where, " AND "))
	var blocked []models.BlockedSlot
	if err := r.db.SelectContext(ctx, &blocked, query, args...); err != nil {
		return nil, fmt.Errorf("list blocked slots: %w", err)
	}
	return blocked, nil
}

// CreateBlockedSlot inserts a blocked occurrence. (slot, date) is unique.
func (r *CalendarRepository) CreateBlockedSlot(ctx context.Context, blocked *models.BlockedSlot) error {
	if blocked.ID == "" {
		blocked.ID = uuid.NewString()
	}
	if blocked.CreatedAt.IsZero() {
		blocked.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO blocked_slots (id, slot_id, date, reason, created_by, created_at)
VALUES (:id, :slot_id, :date, :reason, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, blocked); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create blocked slot: %w", err)
	}
	return nil
}

// DeleteBlockedSlot removes a blocked occurrence.
func (r *CalendarRepository) DeleteBlockedSlot(ctx context.Context, id string) (bool, error) {
	return r.deleteByID(ctx, "blocked_slots", id)
}

func (r *CalendarRepository) deleteByID(ctx context.Context, table, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete from %s rows: %w", table, err)
	}
	return affected > 0, nil
}
