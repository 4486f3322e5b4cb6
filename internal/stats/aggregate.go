// Package stats holds the pure aggregation functions behind every presence
// report. Nothing here reads files or keeps state.
package stats

import (
	"sort"

	"presence/internal/models"
)

// DaysInWeek is the number of weekday buckets; index 0 is Monday.
const DaysInWeek = 7

// WeekdayBuckets groups per-date values by weekday, Monday first.
type WeekdayBuckets [DaysInWeek][]int

// StartEnd holds mean start and end times in seconds since midnight.
type StartEnd struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type number interface {
	~int | ~int64 | ~float64
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean[T number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Sum returns the total of values.
func Sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

// GroupByWeekday collects the presence interval of every date into the bucket
// of that date's weekday. Order within a bucket is unspecified.
func GroupByWeekday(presence models.DailyPresence) WeekdayBuckets {
	var buckets WeekdayBuckets
	for i := range buckets {
		buckets[i] = []int{}
	}
	for date, iv := range presence {
		w := date.Weekday()
		buckets[w] = append(buckets[w], Interval(iv.Start, iv.End))
	}
	return buckets
}

// MeanTimeOfPresence returns the mean start and end time for every weekday.
// Weekdays without entries report zero for both.
func MeanTimeOfPresence(presence models.DailyPresence) [DaysInWeek]StartEnd {
	var starts, ends [DaysInWeek][]int
	for date, iv := range presence {
		w := date.Weekday()
		starts[w] = append(starts[w], SecondsSinceMidnight(iv.Start))
		ends[w] = append(ends[w], SecondsSinceMidnight(iv.End))
	}

	var result [DaysInWeek]StartEnd
	for w := range result {
		result[w] = StartEnd{Start: Mean(starts[w]), End: Mean(ends[w])}
	}
	return result
}

// MeanByMonth returns the mean presence interval per calendar month,
// January first, across all years. Months without entries report zero.
func MeanByMonth(presence models.DailyPresence) [12]float64 {
	var intervals [12][]int
	for date, iv := range presence {
		m := int(date.Month) - 1
		intervals[m] = append(intervals[m], Interval(iv.Start, iv.End))
	}

	var result [12]float64
	for m := range result {
		result[m] = Mean(intervals[m])
	}
	return result
}

// FilterMonth returns the entries of presence that fall in ym.
func FilterMonth(presence models.DailyPresence, ym models.YearMonth) models.DailyPresence {
	out := make(models.DailyPresence)
	for date, iv := range presence {
		if ym.Contains(date) {
			out[date] = iv
		}
	}
	return out
}

// Months returns every month that has at least one entry, oldest first.
func Months(table models.PresenceTable) []models.YearMonth {
	seen := make(map[models.YearMonth]struct{})
	for _, days := range table {
		for date := range days {
			seen[date.YearMonth()] = struct{}{}
		}
	}

	months := make([]models.YearMonth, 0, len(seen))
	for ym := range seen {
		months = append(months, ym)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}
