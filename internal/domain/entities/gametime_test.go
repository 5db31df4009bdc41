package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalendar_Year(t *testing.T) {
	cal := DefaultCalendar()

	tests := []struct {
		name     string
		time     GameTime
		expected int
	}{
		{
			name:     "epoch is epoch year",
			time:     0,
			expected: 1,
		},
		{
			name:     "last minute of first year",
			time:     GameTime(cal.MinutesPerYear() - 1),
			expected: 1,
		},
		{
			name:     "first minute of second year",
			time:     GameTime(cal.MinutesPerYear()),
			expected: 2,
		},
		{
			name:     "before the epoch",
			time:     -1,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cal.Year(tt.time))
		})
	}
}

func TestCalendar_DayOfYear(t *testing.T) {
	cal := DefaultCalendar()

	assert.Equal(t, 1, cal.DayOfYear(0))
	assert.Equal(t, 1, cal.DayOfYear(GameTime(cal.MinutesPerDay()-1)))
	assert.Equal(t, 2, cal.DayOfYear(GameTime(cal.MinutesPerDay())))
	assert.Equal(t, 365, cal.DayOfYear(GameTime(cal.MinutesPerYear()-1)))
	// Wraps at the year boundary.
	assert.Equal(t, 1, cal.DayOfYear(GameTime(cal.MinutesPerYear())))
}

func TestCalendar_Period(t *testing.T) {
	cal := DefaultCalendar()

	tests := []struct {
		name     string
		hour     int
		expected TimeOfDayPeriod
	}{
		{name: "midnight", hour: 0, expected: PeriodNight},
		{name: "late night", hour: 5, expected: PeriodNight},
		{name: "morning", hour: 6, expected: PeriodMorning},
		{name: "noon", hour: 12, expected: PeriodAfternoon},
		{name: "evening", hour: 18, expected: PeriodEvening},
		{name: "last hour", hour: 23, expected: PeriodEvening},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			time := GameTime(int64(tt.hour) * int64(cal.MinutesPerHour))
			assert.Equal(t, tt.expected, cal.Period(time))
		})
	}
}

func TestCalendar_Format(t *testing.T) {
	cal := DefaultCalendar()

	assert.Equal(t, "Year 1, Day 1, 00:00", cal.Format(0))
	assert.Equal(t, "Year 1, Day 1, 09:30", cal.Format(9*60+30))
	assert.Equal(t, "Year 1, Day 2, 00:00", cal.Format(GameTime(cal.MinutesPerDay())))
}

func TestCalendar_NonEarth(t *testing.T) {
	// A world with 20-hour days, 50-minute hours, and 300-day years.
	cal := Calendar{
		HoursPerDay:    20,
		MinutesPerHour: 50,
		DaysPerYear:    300,
		EpochYear:      1000,
	}

	assert.Equal(t, int64(1000), cal.MinutesPerDay())
	assert.Equal(t, int64(300000), cal.MinutesPerYear())

	assert.Equal(t, 1000, cal.Year(0))
	assert.Equal(t, 1001, cal.Year(GameTime(cal.MinutesPerYear())))

	// Hour 5 of 20 is the last night hour; hour 5 starts at minute 250.
	assert.Equal(t, PeriodNight, cal.Period(249))
	assert.Equal(t, PeriodMorning, cal.Period(250))
}

func TestGameTime_Add(t *testing.T) {
	assert.Equal(t, GameTime(90), GameTime(30).Add(60))
	assert.Equal(t, GameTime(-10), GameTime(20).Add(-30))
}

func TestGameTime_Before(t *testing.T) {
	assert.True(t, GameTime(10).Before(11))
	assert.False(t, GameTime(11).Before(11))
	assert.False(t, GameTime(12).Before(11))
}
