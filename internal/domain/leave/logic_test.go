package leave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDays(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	days, err := CalculateDays(start, end)
	require.NoError(t, err)
	assert.True(t, days.Equal(decimal.NewFromInt(1)), "got %s", days)

	end = time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)
	days, err = CalculateDays(start, end)
	require.NoError(t, err)
	assert.True(t, days.Equal(decimal.NewFromInt(3)), "got %s", days)
}

func TestCalculateDaysIgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 2, 6, 0, 0, 0, time.UTC)

	days, err := CalculateDays(start, end)
	require.NoError(t, err)
	assert.True(t, days.Equal(decimal.NewFromInt(2)), "got %s", days)
}

func TestCalculateDaysInvalid(t *testing.T) {
	start := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC)

	_, err := CalculateDays(start, end)
	assert.Error(t, err)
}

func TestCalculateRequestDays(t *testing.T) {
	start := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		end       time.Time
		startHalf bool
		endHalf   bool
		want      string
		wantErr   bool
	}{
		{name: "full days", end: end, want: "3"},
		{name: "start half", end: end, startHalf: true, want: "2.5"},
		{name: "both halves", end: end, startHalf: true, endHalf: true, want: "2"},
		{name: "single half day", end: start, startHalf: true, want: "0.5"},
		{name: "single day both halves", end: start, startHalf: true, endHalf: true, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			days, err := CalculateRequestDays(start, tc.end, tc.startHalf, tc.endHalf)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, days.String())
		})
	}
}

func TestIsHalfDayMultiple(t *testing.T) {
	assert.True(t, IsHalfDayMultiple(decimal.RequireFromString("2.5")))
	assert.True(t, IsHalfDayMultiple(decimal.NewFromInt(3)))
	assert.False(t, IsHalfDayMultiple(decimal.RequireFromString("1.25")))
}

func TestLeaveTypeAppliesTo(t *testing.T) {
	all := LeaveType{}
	assert.True(t, all.AppliesTo("staff"))

	heads := LeaveType{ApplicableTo: []string{"head_of_department", "dean"}}
	assert.True(t, heads.AppliesTo("department_head"))
	assert.True(t, heads.AppliesTo("Dean"))
	assert.False(t, heads.AppliesTo("staff"))
}
