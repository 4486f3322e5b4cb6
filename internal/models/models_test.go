package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2013-09-10")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2013, Month: time.September, Day: 10}, d)
	assert.Equal(t, "2013-09-10", d.String())

	_, err = ParseDate("10-09-2013")
	assert.Error(t, err)
	_, err = ParseDate("2013-02-30")
	assert.Error(t, err)
}

func TestDate_Weekday(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2013-09-09", 0}, // Monday
		{"2013-09-10", 1},
		{"2013-09-11", 2},
		{"2013-09-12", 3},
		{"2013-09-13", 4},
		{"2013-09-14", 5},
		{"2013-09-15", 6}, // Sunday
	}

	for _, tt := range tests {
		d, err := ParseDate(tt.date)
		require.NoError(t, err)
		assert.Equal(t, tt.want, d.Weekday(), "date: %s", tt.date)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:39:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 39, Second: 5}, tod)
	assert.Equal(t, "09:39:05", tod.String())

	for _, bad := range []string{"", "9:39", "25:00:00", "ab:cd:ef"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, "input: %q", bad)
	}
}

func TestPresenceTable_AddLaterWins(t *testing.T) {
	table := make(PresenceTable)
	day := Date{Year: 2013, Month: time.September, Day: 10}

	table.Add(PresenceRecord{UserID: 10, Date: day, Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 17}})
	table.Add(PresenceRecord{UserID: 10, Date: day, Start: TimeOfDay{Hour: 8}, End: TimeOfDay{Hour: 16}})

	require.Len(t, table[10], 1)
	assert.Equal(t, TimeOfDay{Hour: 8}, table[10][day].Start)
	assert.Equal(t, TimeOfDay{Hour: 16}, table[10][day].End)
}

func TestYearMonth(t *testing.T) {
	ym, err := ParseYearMonth("2013-09")
	require.NoError(t, err)
	assert.Equal(t, YearMonth{Year: 2013, Month: time.September}, ym)
	assert.Equal(t, "2013-09", ym.String())

	assert.True(t, ym.Contains(Date{Year: 2013, Month: time.September, Day: 1}))
	assert.False(t, ym.Contains(Date{Year: 2014, Month: time.September, Day: 1}))

	assert.True(t, YearMonth{2012, time.December}.Before(ym))
	assert.False(t, ym.Before(ym))
	assert.Equal(t, YearMonth{2012, time.December}, YearMonth{2013, time.January}.Previous())

	_, err = ParseYearMonth("September")
	assert.Error(t, err)
}

func TestJSONEncoding(t *testing.T) {
	payload := struct {
		Date     Date      `json:"date"`
		Interval Interval  `json:"interval"`
		Month    YearMonth `json:"month"`
	}{
		Date:     Date{Year: 2013, Month: time.September, Day: 10},
		Interval: Interval{Start: TimeOfDay{9, 39, 5}, End: TimeOfDay{17, 59, 52}},
		Month:    YearMonth{Year: 2013, Month: time.September},
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"date":"2013-09-10","interval":{"start":"09:39:05","end":"17:59:52"},"month":"2013-09"}`,
		string(data))
}
