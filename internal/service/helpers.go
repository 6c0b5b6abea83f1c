package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/studio-agenda-api/internal/models"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
)

const dayLayout = "2006-01-02"

// auditRecorder receives audit entries; AuditService implements it.
type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, models.AuditLog) {}

func parseDay(value, field string) (time.Time, error) {
	day, err := time.ParseInLocation(dayLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, field+" must be a YYYY-MM-DD date")
	}
	return day, nil
}

func parseOptionalDay(value *string, field string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	day, err := parseDay(*value, field)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// outcomeOf labels an operation result for metrics.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(appErrors.FromError(err).Code)
}

func clockMinutes(value string) int {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}

func pagination(page, size, total, defaultSize, maxSize int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxSize {
		size = defaultSize
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
