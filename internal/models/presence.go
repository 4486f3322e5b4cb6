package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timeOfDayLayout = "15:04:05"
	yearMonthLayout = "2006-01"
)

// Date is a calendar date without a clock or a location. It is comparable and
// is used as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the weekday index with Monday = 0 and Sunday = 6.
func (d Date) Weekday() int {
	return (int(d.Time().Weekday()) + 6) % 7
}

// YearMonth returns the month the date falls in.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year, Month: d.Month}
}

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses an HH:MM:SS string.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	t, err := time.Parse(timeOfDayLayout, value)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Interval is the clock-time span a user was present on a single date.
// Start <= End is expected but not enforced.
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// PresenceRecord is one parsed row of the presence file.
type PresenceRecord struct {
	UserID int
	Date   Date
	Start  TimeOfDay
	End    TimeOfDay
}

// DailyPresence maps a date to the interval recorded for it.
type DailyPresence map[Date]Interval

// PresenceTable maps a user id to that user's daily presence.
// Keys are unique per (user id, date).
type PresenceTable map[int]DailyPresence

// Add stores the record, replacing any earlier interval for the same user and date.
func (t PresenceTable) Add(rec PresenceRecord) {
	days, ok := t[rec.UserID]
	if !ok {
		days = make(DailyPresence)
		t[rec.UserID] = days
	}
	days[rec.Date] = Interval{Start: rec.Start, End: rec.End}
}

// UserProfile is the metadata of a single user.
type UserProfile struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// UserDirectory maps a user id to its profile.
type UserDirectory map[int]UserProfile

// YearMonth identifies a calendar month of a specific year.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses a YYYY-MM string.
func ParseYearMonth(value string) (YearMonth, error) {
	t, err := time.Parse(yearMonthLayout, value)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse month %q: %w", value, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// Contains reports whether d falls in the month.
func (ym YearMonth) Contains(d Date) bool {
	return d.Year == ym.Year && d.Month == ym.Month
}

// Before reports whether ym precedes other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// Previous returns the month before ym.
func (ym YearMonth) Previous() YearMonth {
	if ym.Month == time.January {
		return YearMonth{Year: ym.Year - 1, Month: time.December}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) MarshalJSON() ([]byte, error) {
	return json.Marshal(ym.String())
}
