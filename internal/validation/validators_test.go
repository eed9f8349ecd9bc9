package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benvon/smart-docs/internal/models"
)

func validProfile() models.UserProfile {
	return models.UserProfile{
		Age:             29,
		Gender:          "Female",
		Occupation:      "Student",
		EducationLevel:  "Bachelor",
		DeviceType:      "Mobile",
		DailyUsageHours: 3.5,
	}
}

func TestStruct_UserProfile(t *testing.T) {
	t.Parallel()

	require.NoError(t, Struct(validProfile()))

	tests := []struct {
		name    string
		mutate  func(*models.UserProfile)
		wantMsg string
	}{
		{name: "blank gender", mutate: func(p *models.UserProfile) { p.Gender = "   " }, wantMsg: "gender is required"},
		{name: "negative age", mutate: func(p *models.UserProfile) { p.Age = -1 }, wantMsg: "age must be at least 0"},
		{name: "too many hours", mutate: func(p *models.UserProfile) { p.DailyUsageHours = 25 }, wantMsg: "daily_usage_hours must be at most 24"},
		{name: "missing device", mutate: func(p *models.UserProfile) { p.DeviceType = "" }, wantMsg: "device_type is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validProfile()
			tt.mutate(&p)
			err := Struct(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestStruct_MessagesAreSorted(t *testing.T) {
	t.Parallel()

	err := Struct(models.UserProfile{Age: 200, DailyUsageHours: -1})
	require.Error(t, err)
	assert.Equal(t,
		"age must be at most 150; daily_usage_hours must be at least 0; device_type is required; education_level is required; gender is required; occupation is required",
		err.Error())
}

func TestValidateFilename(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"plan.json", "weekly_plan.json", "a.json"} {
		assert.NoError(t, ValidateFilename(ok), ok)
	}
	for _, bad := range []string{"", "plan.txt", "../plan.json", "a/b.json", ".hidden.json", "bad\x00.json"} {
		assert.Error(t, ValidateFilename(bad), bad)
	}

	type payload struct {
		File string `json:"file" validate:"docfile"`
	}
	assert.NoError(t, Struct(payload{File: "plan.json"}))
	assert.Error(t, Struct(payload{File: "plan"}))
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "add a row\twith tabs\nand lines", SanitizeText("  add a row\twith tabs\nand lines\x07  "))
	assert.Equal(t, "", SanitizeText(" \x00 "))
}
