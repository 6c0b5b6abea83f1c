package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/dto"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/pkg/cache"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

type mockNoticeRepo struct {
	items       map[string]*models.Notice
	activeCalls int
	deleted     []string
}

func (m *mockNoticeRepo) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	var result []models.Notice
	for _, n := range m.items {
		if filter.Audience != "" && n.Audience != filter.Audience {
			continue
		}
		result = append(result, *n)
	}
	return result, len(result), nil
}

func (m *mockNoticeRepo) ListActive(ctx context.Context, at time.Time) ([]models.Notice, error) {
	m.activeCalls++
	var result []models.Notice
	for _, n := range m.items {
		if n.Active && !n.StartsAt.After(at) && (n.EndsAt == nil || n.EndsAt.After(at)) {
			result = append(result, *n)
		}
	}
	return result, nil
}

func (m *mockNoticeRepo) FindByID(ctx context.Context, id string) (*models.Notice, error) {
	if n, ok := m.items[id]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNoticeRepo) Create(ctx context.Context, notice *models.Notice) error {
	notice.ID = "n-" + notice.Title
	cp := *notice
	m.items[notice.ID] = &cp
	return nil
}

func (m *mockNoticeRepo) Update(ctx context.Context, notice *models.Notice) error {
	cp := *notice
	m.items[notice.ID] = &cp
	return nil
}

func (m *mockNoticeRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

func TestNoticeServiceCreateDefaults(t *testing.T) {
	repo := &mockNoticeRepo{items: map[string]*models.Notice{}}
	svc := NewNoticeService(repo, nil, validation.New(), zap.NewNop())
	fixed := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	notice, err := svc.Create(context.Background(), dto.NoticeRequest{Title: "closed", Message: "Studio closed on Friday"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.NoticeAudienceAll, notice.Audience)
	assert.Equal(t, fixed, notice.StartsAt)
	assert.Equal(t, "admin", notice.CreatedBy)
	assert.True(t, notice.Active)

	past := fixed.Add(-time.Hour)
	_, err = svc.Create(context.Background(), dto.NoticeRequest{Title: "bad", Message: "x", EndsAt: &past}, "admin")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), dto.NoticeRequest{Title: "bad", Message: "x", Audience: "parents"}, "admin")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestNoticeServiceActiveListIsCached(t *testing.T) {
	fixed := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	repo := &mockNoticeRepo{items: map[string]*models.Notice{
		"n1": {ID: "n1", Title: "Welcome", Active: true, StartsAt: fixed.Add(-time.Hour)},
		"n2": {ID: "n2", Title: "Later", Active: true, StartsAt: fixed.Add(time.Hour)},
	}}
	store := newMemCache()
	cacheSvc := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)
	svc := NewNoticeService(repo, cacheSvc, validation.New(), zap.NewNop())
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "n1", active[0].ID)

	_, err = svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.activeCalls)
	assert.True(t, store.has(cache.KeyActiveNotices))

	require.NoError(t, svc.Delete(ctx, "n1"))
	assert.False(t, store.has(cache.KeyActiveNotices))

	active, err = svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.NotNil(t, active)
	assert.Equal(t, 2, repo.activeCalls)
}

func TestNoticeServiceUpdateAndDelete(t *testing.T) {
	repo := &mockNoticeRepo{items: map[string]*models.Notice{
		"n1": {ID: "n1", Title: "Old", Message: "m", Audience: models.NoticeAudienceAll, Active: true, StartsAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewNoticeService(repo, nil, nil, nil)

	updated, err := svc.Update(context.Background(), "n1", dto.NoticeRequest{Title: "New", Message: "m2", Audience: "teachers", Pinned: true})
	require.NoError(t, err)
	assert.Equal(t, models.NoticeAudienceTeachers, updated.Audience)
	assert.True(t, updated.Pinned)
	assert.Equal(t, 2024, updated.StartsAt.Year())

	_, err = svc.Update(context.Background(), "missing", dto.NoticeRequest{Title: "x", Message: "y"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	assert.True(t, appErrors.Is(svc.Delete(context.Background(), "missing"), appErrors.ErrNotFound))
}
