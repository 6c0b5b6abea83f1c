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

const slotDetailSelect = `SELECT sl.id, sl.teacher_id, sl.modality_id, sl.day_of_week, sl.start_time, sl.end_time, sl.capacity,
sl.active, sl.frozen, sl.waiting, sl.absent, sl.notes, sl.created_at, sl.updated_at,
t.name AS teacher_name, m.name AS modality_name, m.default_capacity,
(SELECT COUNT(*) FROM enrollments e WHERE e.slot_id = sl.id AND e.active = TRUE) AS active_enrollments
FROM schedule_slots sl
JOIN teachers t ON t.id = sl.teacher_id
JOIN modalities m ON m.id = sl.modality_id`

// ScheduleSlotRepository persists recurring weekly slots.
type ScheduleSlotRepository struct {
	db *sqlx.DB
}

// NewScheduleSlotRepository constructs the repository.
func NewScheduleSlotRepository(db *sqlx.DB) *ScheduleSlotRepository {
	return &ScheduleSlotRepository{db: db}
}

// List returns slots ordered by weekday and start time.
func (r *ScheduleSlotRepository) List(ctx context.Context, filter models.ScheduleSlotFilter) ([]models.ScheduleSlotDetail, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("sl.teacher_id = $%d", len(args)))
	}
	if filter.ModalityID != "" {
		args = append(args, filter.ModalityID)
		conditions = append(conditions, fmt.Sprintf("sl.modality_id = $%d", len(args)))
	}
	if filter.DayOfWeek != nil {
		args = append(args, *filter.DayOfWeek)
		conditions = append(conditions, fmt.Sprintf("sl.day_of_week = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("sl.active = $%d", len(args)))
	}
	query := fmt.Sprintf("%s WHERE %s ORDER BY sl.day_of_week, sl.start_time, t.name", slotDetailSelect, strings.Join(conditions, " AND "))
	var slots []models.ScheduleSlotDetail
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list schedule slots: %w", err)
	}
	return slots, nil
}

// FindByID fetches a slot with names and occupancy.
func (r *ScheduleSlotRepository) FindByID(ctx context.Context, id string) (*models.ScheduleSlotDetail, error) {
	var slot models.ScheduleSlotDetail
	if err := r.db.GetContext(ctx, &slot, slotDetailSelect+` WHERE sl.id = $1`, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Capacity returns the unlocked capacity view of a slot.
func (r *ScheduleSlotRepository) Capacity(ctx context.Context, id string) (*models.SlotCapacity, error) {
	var slot models.SlotCapacity
	if err := r.db.GetContext(ctx, &slot, slotCapacityQuery, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// HasOverlap reports whether the teacher already has an active slot on the
// same weekday whose time range intersects [start, end).
func (r *ScheduleSlotRepository) HasOverlap(ctx context.Context, teacherID string, dayOfWeek int, start, end, excludeID string) (bool, error) {
	query := `SELECT 1 FROM schedule_slots
WHERE teacher_id = $1 AND day_of_week = $2 AND active = TRUE AND start_time < $4 AND end_time > $3`
	args := []interface{}{teacherID, dayOfWeek, start, end}
	if excludeID != "" {
		query += ` AND id <> $5`
		args = append(args, excludeID)
	}
	return existsTx(ctx, r.db, "check slot overlap", query+` LIMIT 1`, args...)
}

// Create inserts a slot.
func (r *ScheduleSlotRepository) Create(ctx context.Context, slot *models.ScheduleSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
	const query = `INSERT INTO schedule_slots (id, teacher_id, modality_id, day_of_week, start_time, end_time, capacity, active, frozen, waiting, absent, notes, created_at, updated_at)
VALUES (:id, :teacher_id, :modality_id, :day_of_week, :start_time, :end_time, :capacity, :active, :frozen, :waiting, :absent, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create schedule slot: %w", err)
	}
	return nil
}

// Update modifies the schedule fields of a slot.
func (r *ScheduleSlotRepository) Update(ctx context.Context, slot *models.ScheduleSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_slots SET teacher_id = :teacher_id, modality_id = :modality_id, day_of_week = :day_of_week,
start_time = :start_time, end_time = :end_time, capacity = :capacity, active = :active, notes = :notes, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("update schedule slot: %w", err)
	}
	return nil
}

// SetFlags updates the status markers shown on the weekly grid.
func (r *ScheduleSlotRepository) SetFlags(ctx context.Context, id string, frozen, waiting, absent bool, notes string) error {
	const query = `UPDATE schedule_slots SET frozen = $2, waiting = $3, absent = $4, notes = $5, updated_at = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, frozen, waiting, absent, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("set schedule slot flags: %w", err)
	}
	return nil
}

// Deactivate soft deletes a slot that is still referenced.
func (r *ScheduleSlotRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE schedule_slots SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate schedule slot: %w", err)
	}
	return nil
}

// Delete removes an unreferenced slot.
func (r *ScheduleSlotRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedule_slots WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule slot: %w", err)
	}
	return nil
}
