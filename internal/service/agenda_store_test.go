package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/internal/repository"
)

// memStore is an in-memory stand-in for the agenda tables. InTx holds the
// store mutex for the whole callback and restores a snapshot on error, which
// mirrors row locking plus rollback closely enough for service tests.
type memStore struct {
	mu          sync.Mutex
	students    map[string]*models.Student
	slots       map[string]*models.ScheduleSlotDetail
	enrollments map[string]*models.Enrollment
	requests    map[string]*models.ChangeRequest
	credits     map[string]*models.AbsenceCredit
	usages      map[string]*models.CreditUsage
	holidays    map[string]bool
	blocked     map[string]bool
	failOn      map[string]error
	seq         int
	clock       time.Time
}

func newMemStore() *memStore {
	return &memStore{
		students:    map[string]*models.Student{},
		slots:       map[string]*models.ScheduleSlotDetail{},
		enrollments: map[string]*models.Enrollment{},
		requests:    map[string]*models.ChangeRequest{},
		credits:     map[string]*models.AbsenceCredit{},
		usages:      map[string]*models.CreditUsage{},
		holidays:    map[string]bool{},
		blocked:     map[string]bool{},
		failOn:      map[string]error{},
		clock:       time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) addStudent(id string) {
	m.students[id] = &models.Student{ID: id, Name: "Student " + id, Active: true}
}

func (m *memStore) addSlot(id string, capacity *int, defaultCapacity int) {
	m.slots[id] = &models.ScheduleSlotDetail{
		ScheduleSlot:    models.ScheduleSlot{ID: id, TeacherID: "teacher", ModalityID: "pilates", DayOfWeek: 1, StartTime: "07:00", EndTime: "08:00", Capacity: capacity, Active: true},
		DefaultCapacity: defaultCapacity,
		ModalityName:    "Pilates",
		TeacherName:     "Ana",
	}
}

func (m *memStore) addEnrollment(id, studentID, slotID string, active bool) {
	now := m.tick()
	m.enrollments[id] = &models.Enrollment{ID: id, StudentID: studentID, SlotID: slotID, Active: active, CreatedAt: now, UpdatedAt: now}
}

func (m *memStore) activeOn(studentID, slotID string) []models.Enrollment {
	var result []models.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.SlotID == slotID && e.Active {
			result = append(result, *e)
		}
	}
	return result
}

func (m *memStore) countActive(slotID string) int {
	total := 0
	for _, e := range m.enrollments {
		if e.SlotID == slotID && e.Active {
			total++
		}
	}
	return total
}

type memSnapshot struct {
	enrollments map[string]models.Enrollment
	requests    map[string]models.ChangeRequest
	credits     map[string]models.AbsenceCredit
	usages      map[string]models.CreditUsage
}

func (m *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		enrollments: map[string]models.Enrollment{},
		requests:    map[string]models.ChangeRequest{},
		credits:     map[string]models.AbsenceCredit{},
		usages:      map[string]models.CreditUsage{},
	}
	for k, v := range m.enrollments {
		snap.enrollments[k] = *v
	}
	for k, v := range m.requests {
		snap.requests[k] = *v
	}
	for k, v := range m.credits {
		snap.credits[k] = *v
	}
	for k, v := range m.usages {
		snap.usages[k] = *v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.enrollments = map[string]*models.Enrollment{}
	for k, v := range snap.enrollments {
		v := v
		m.enrollments[k] = &v
	}
	m.requests = map[string]*models.ChangeRequest{}
	for k, v := range snap.requests {
		v := v
		m.requests[k] = &v
	}
	m.credits = map[string]*models.AbsenceCredit{}
	for k, v := range snap.credits {
		v := v
		m.credits[k] = &v
	}
	m.usages = map[string]*models.CreditUsage{}
	for k, v := range snap.usages {
		v := v
		m.usages[k] = &v
	}
}

func (m *memStore) inTx(fn func(*memTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// memTx implements every repository *Tx interface.
type memTx struct {
	m *memStore
}

func (t *memTx) fail(op string) error {
	return t.m.failOn[op]
}

func (t *memTx) LockSlot(_ context.Context, slotID string) (*models.SlotCapacity, error) {
	slot, ok := t.m.slots[slotID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.SlotCapacity{SlotID: slot.ID, Active: slot.Active, Capacity: slot.Capacity, DefaultCapacity: slot.DefaultCapacity}, nil
}

func (t *memTx) CountActiveEnrollments(_ context.Context, slotID string) (int, error) {
	return t.m.countActive(slotID), nil
}

func (t *memTx) FindEnrollment(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := t.m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (t *memTx) LatestEnrollment(_ context.Context, studentID, slotID string) (*models.Enrollment, error) {
	var matches []models.Enrollment
	for _, e := range t.m.enrollments {
		if e.StudentID == studentID && e.SlotID == slotID {
			matches = append(matches, *e)
		}
	}
	if len(matches) == 0 {
		return nil, sql.ErrNoRows
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Active != matches[j].Active {
			return matches[i].Active
		}
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})
	return &matches[0], nil
}

func (t *memTx) SetEnrollmentActive(_ context.Context, id string, active bool) error {
	if err := t.fail("SetEnrollmentActive"); err != nil {
		return err
	}
	if e, ok := t.m.enrollments[id]; ok {
		e.Active = active
		e.UpdatedAt = t.m.tick()
	}
	return nil
}

func (t *memTx) InsertEnrollment(_ context.Context, enrollment *models.Enrollment) error {
	if err := t.fail("InsertEnrollment"); err != nil {
		return err
	}
	if enrollment.Active && len(t.m.activeOn(enrollment.StudentID, enrollment.SlotID)) > 0 {
		return repository.ErrDuplicate
	}
	if enrollment.ID == "" {
		enrollment.ID = t.m.nextID("enr")
	}
	now := t.m.tick()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	clone := *enrollment
	t.m.enrollments[enrollment.ID] = &clone
	return nil
}

func (t *memTx) LockChangeRequest(_ context.Context, id string) (*models.ChangeRequest, error) {
	r, ok := t.m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (t *memTx) MarkApproved(_ context.Context, id, approverID, targetEnrollmentID string, targetPreexisting bool, at time.Time) error {
	if err := t.fail("MarkApproved"); err != nil {
		return err
	}
	r, ok := t.m.requests[id]
	if !ok || r.Status != models.ChangeRequestPending {
		return sql.ErrNoRows
	}
	r.Status = models.ChangeRequestApproved
	r.ApprovedBy = &approverID
	r.TargetEnrollmentID = &targetEnrollmentID
	r.TargetPreexisting = targetPreexisting
	r.UpdatedAt = at
	return nil
}

func (t *memTx) DeleteChangeRequest(_ context.Context, id string) error {
	delete(t.m.requests, id)
	return nil
}

func (t *memTx) LockCredit(_ context.Context, id string) (*models.AbsenceCredit, error) {
	c, ok := t.m.credits[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (t *memTx) SetCreditConsumed(_ context.Context, id string, consumed bool) error {
	if c, ok := t.m.credits[id]; ok {
		c.Consumed = consumed
	}
	return nil
}

func (t *memTx) InsertUsage(_ context.Context, usage *models.CreditUsage) error {
	if err := t.fail("InsertUsage"); err != nil {
		return err
	}
	if usage.ID == "" {
		usage.ID = t.m.nextID("use")
	}
	clone := *usage
	t.m.usages[usage.ID] = &clone
	return nil
}

func (t *memTx) LockUsage(_ context.Context, id string) (*models.CreditUsage, error) {
	u, ok := t.m.usages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (t *memTx) DeleteUsage(_ context.Context, id string) error {
	delete(t.m.usages, id)
	return nil
}

func (t *memTx) IsHoliday(_ context.Context, day time.Time) (bool, error) {
	return t.m.holidays[day.Format(dayLayout)], nil
}

func (t *memTx) IsBlocked(_ context.Context, slotID string, day time.Time) (bool, error) {
	return t.m.blocked[slotID+"|"+day.Format(dayLayout)], nil
}

// changeRequestView exposes the store as the change-request repository.
type changeRequestView struct{ *memStore }

func (v changeRequestView) Create(_ context.Context, request *models.ChangeRequest) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.failOn["CreateChangeRequest"]; err != nil {
		return err
	}
	if request.ID == "" {
		request.ID = v.nextID("cr")
	}
	now := v.tick()
	request.CreatedAt = now
	request.UpdatedAt = now
	clone := *request
	v.requests[request.ID] = &clone
	return nil
}

func (v changeRequestView) FindByID(_ context.Context, id string) (*models.ChangeRequest, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (v changeRequestView) List(_ context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var result []models.ChangeRequest
	for _, r := range v.requests {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if len(filter.Status) > 0 {
			matched := false
			for _, s := range filter.Status {
				matched = matched || s == r.Status
			}
			if !matched {
				continue
			}
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (v changeRequestView) Reject(_ context.Context, id, approverID, reason string, at time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.requests[id]
	if !ok || r.Status != models.ChangeRequestPending {
		return sql.ErrNoRows
	}
	r.Status = models.ChangeRequestRejected
	r.ApprovedBy = &approverID
	r.RejectionReason = &reason
	r.UpdatedAt = at
	return nil
}

func (v changeRequestView) InTx(_ context.Context, fn func(repository.ChangeRequestTx) error) error {
	return v.inTx(func(tx *memTx) error { return fn(tx) })
}

func (v changeRequestView) ListTransfersWithActiveSource(_ context.Context) ([]models.StaleTransfer, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var transfers []models.StaleTransfer
	for _, r := range v.requests {
		if r.Status != models.ChangeRequestApproved {
			continue
		}
		source, ok := v.enrollments[r.SourceEnrollmentID]
		if !ok || !source.Active {
			continue
		}
		transfer := models.StaleTransfer{
			ChangeRequestID:    r.ID,
			StudentID:          r.StudentID,
			SourceEnrollmentID: r.SourceEnrollmentID,
			TargetEnrollmentID: r.TargetEnrollmentID,
			ApprovedAt:         r.UpdatedAt,
			SourceUpdatedAt:    source.UpdatedAt,
		}
		if r.TargetEnrollmentID != nil {
			if target, ok := v.enrollments[*r.TargetEnrollmentID]; ok {
				active := target.Active
				transfer.TargetActive = &active
			}
		}
		for _, later := range v.requests {
			if later.ID != r.ID && later.Status == models.ChangeRequestApproved &&
				later.TargetEnrollmentID != nil && *later.TargetEnrollmentID == r.SourceEnrollmentID &&
				!later.UpdatedAt.Before(r.UpdatedAt) {
				transfer.SourceRetargeted = true
			}
		}
		transfers = append(transfers, transfer)
	}
	sort.Slice(transfers, func(i, j int) bool { return transfers[i].ApprovedAt.Before(transfers[j].ApprovedAt) })
	return transfers, nil
}

type studentView struct{ *memStore }

func (v studentView) FindByID(_ context.Context, id string) (*models.Student, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *s
	return &clone, nil
}

type slotView struct{ *memStore }

func (v slotView) FindByID(_ context.Context, id string) (*models.ScheduleSlotDetail, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *s
	clone.ActiveEnrollments = v.countActive(id)
	return &clone, nil
}

type enrollmentView struct{ *memStore }

func (v enrollmentView) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (v enrollmentView) FindActive(_ context.Context, studentID, slotID string) (*models.Enrollment, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	active := v.activeOn(studentID, slotID)
	if len(active) == 0 {
		return nil, sql.ErrNoRows
	}
	return &active[0], nil
}

func (v enrollmentView) InTx(_ context.Context, fn func(repository.EnrollmentTx) error) error {
	return v.inTx(func(tx *memTx) error { return fn(tx) })
}

func (v enrollmentView) List(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var result []models.EnrollmentDetail
	for _, e := range v.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.SlotID != "" && e.SlotID != filter.SlotID {
			continue
		}
		if filter.Active != nil && e.Active != *filter.Active {
			continue
		}
		detail := models.EnrollmentDetail{Enrollment: *e}
		if s, ok := v.students[e.StudentID]; ok {
			detail.StudentName = s.Name
		}
		result = append(result, detail)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (v enrollmentView) Deactivate(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if e, ok := v.enrollments[id]; ok {
		e.Active = false
		e.UpdatedAt = v.tick()
	}
	return nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *recordingAudit) Record(_ context.Context, entry models.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions map[string]int
}

func (r *recordingMetrics) RecordTransition(transition, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitions == nil {
		r.transitions = map[string]int{}
	}
	r.transitions[transition+":"+outcome]++
}

func (r *recordingMetrics) ObserveDBQuery(string, time.Duration) {}

func intPtr(v int) *int { return &v }

type creditView struct{ *memStore }

func (v creditView) Create(_ context.Context, credit *models.AbsenceCredit) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if credit.ID == "" {
		credit.ID = v.nextID("cred")
	}
	credit.CreatedAt = v.tick()
	clone := *credit
	v.credits[credit.ID] = &clone
	return nil
}

func (v creditView) FindByID(_ context.Context, id string) (*models.AbsenceCredit, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.credits[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (v creditView) List(_ context.Context, filter models.CreditFilter) ([]models.AbsenceCredit, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var result []models.AbsenceCredit
	for _, c := range v.credits {
		if filter.StudentID != "" && c.StudentID != filter.StudentID {
			continue
		}
		if filter.AvailableOnly && c.Consumed {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AbsenceDate.After(result[j].AbsenceDate) })
	return result, nil
}

func (v creditView) ListUsages(_ context.Context, studentID string) ([]models.CreditUsage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var result []models.CreditUsage
	for _, u := range v.usages {
		if studentID == "" || u.StudentID == studentID {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (v creditView) FindUsage(_ context.Context, id string) (*models.CreditUsage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	u, ok := v.usages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (v creditView) ConfirmAttendance(_ context.Context, id string, confirmed bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if u, ok := v.usages[id]; ok {
		u.AttendanceConfirmed = confirmed
	}
	return nil
}

func (v creditView) InTx(_ context.Context, fn func(repository.CreditTx) error) error {
	return v.inTx(func(tx *memTx) error { return fn(tx) })
}
