package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
)

type slotPayload struct {
	TeacherID string `json:"teacherId" validate:"required"`
	StartTime string `json:"startTime" validate:"required,clock"`
	DayOfWeek int    `json:"dayOfWeek" validate:"min=0,max=6"`
}

func TestStructTranslatesUsingJSONNames(t *testing.T) {
	v := New()
	err := v.Struct(slotPayload{StartTime: "25:00", DayOfWeek: 9})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "dayOfWeek")
	assert.Contains(t, appErr.Message, "startTime must be a HH:MM time")
	assert.Contains(t, appErr.Message, "teacherId is a required field")
}

func TestStructAcceptsValidPayload(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(slotPayload{TeacherID: "t1", StartTime: "07:30", DayOfWeek: 2}))
}
