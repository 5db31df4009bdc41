// Package entities contains core domain data structures.
package entities

import "fmt"

// GameTime is the in-world clock value: elapsed in-world minutes since the
// world's epoch. It advances only through explicit director action or an
// approved time-cost suggestion, never through wall-clock drift.
type GameTime int64

// Add returns the game time advanced by the given number of minutes.
func (t GameTime) Add(minutes int64) GameTime {
	return t + GameTime(minutes)
}

// Before reports whether t is strictly earlier than other.
func (t GameTime) Before(other GameTime) bool {
	return t < other
}

// TimeOfDayPeriod is a named slice of the in-world day.
type TimeOfDayPeriod string

const (
	PeriodMorning   TimeOfDayPeriod = "morning"
	PeriodAfternoon TimeOfDayPeriod = "afternoon"
	PeriodEvening   TimeOfDayPeriod = "evening"
	PeriodNight     TimeOfDayPeriod = "night"
)

// Calendar describes how raw game minutes map onto days, years, and
// time-of-day periods. Worlds can run non-Earth calendars (a 20-hour day,
// a 300-day year), so all date math goes through this type.
type Calendar struct {
	HoursPerDay    int `json:"hours_per_day" yaml:"hours_per_day"`
	MinutesPerHour int `json:"minutes_per_hour" yaml:"minutes_per_hour"`
	DaysPerYear    int `json:"days_per_year" yaml:"days_per_year"`
	EpochYear      int `json:"epoch_year" yaml:"epoch_year"`
}

// DefaultCalendar returns an Earth-like calendar starting at year 1.
func DefaultCalendar() Calendar {
	return Calendar{
		HoursPerDay:    24,
		MinutesPerHour: 60,
		DaysPerYear:    365,
		EpochYear:      1,
	}
}

// MinutesPerDay returns the number of game minutes in one day.
func (c Calendar) MinutesPerDay() int64 {
	return int64(c.HoursPerDay) * int64(c.MinutesPerHour)
}

// MinutesPerYear returns the number of game minutes in one year.
func (c Calendar) MinutesPerYear() int64 {
	return c.MinutesPerDay() * int64(c.DaysPerYear)
}

// Year returns the calendar year for the given game time.
func (c Calendar) Year(t GameTime) int {
	return c.EpochYear + int(floorDiv(int64(t), c.MinutesPerYear()))
}

// DayOfYear returns the 1-based day within the year for the given game time.
func (c Calendar) DayOfYear(t GameTime) int {
	minuteOfYear := floorMod(int64(t), c.MinutesPerYear())
	return int(minuteOfYear/c.MinutesPerDay()) + 1
}

// HourOfDay returns the 0-based hour within the day for the given game time.
func (c Calendar) HourOfDay(t GameTime) int {
	minuteOfDay := floorMod(int64(t), c.MinutesPerDay())
	return int(minuteOfDay / int64(c.MinutesPerHour))
}

// Period returns the time-of-day period for the given game time. The day is
// split into four equal quarters starting at night (hour 0).
func (c Calendar) Period(t GameTime) TimeOfDayPeriod {
	quarter := c.HoursPerDay / 4
	switch hour := c.HourOfDay(t); {
	case hour < quarter:
		return PeriodNight
	case hour < 2*quarter:
		return PeriodMorning
	case hour < 3*quarter:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

// Format renders the game time as "Year Y, Day D, HH:MM".
func (c Calendar) Format(t GameTime) string {
	minuteOfHour := floorMod(int64(t), int64(c.MinutesPerHour))
	return fmt.Sprintf("Year %d, Day %d, %02d:%02d", c.Year(t), c.DayOfYear(t), c.HourOfDay(t), minuteOfHour)
}

// floorDiv divides rounding toward negative infinity, so times before the
// epoch land in the correct year.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// floorMod returns the non-negative remainder of a/b.
func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
