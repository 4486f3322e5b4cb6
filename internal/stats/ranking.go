package stats

import (
	"fmt"
	"sort"

	"presence/internal/models"
)

// Ranking is one place of a monthly presence ranking.
type Ranking struct {
	UserID int     `json:"user_id"`
	Name   string  `json:"name"`
	Avatar string  `json:"avatar"`
	Mean   float64 `json:"mean"`
}

// DisplayName returns the directory name of the user or a generated fallback.
func DisplayName(dir models.UserDirectory, userID int) string {
	if profile, ok := dir[userID]; ok && profile.Name != "" {
		return profile.Name
	}
	return fmt.Sprintf("User %d", userID)
}

// TopMonthly ranks users with entries in ym by their mean presence interval
// over that month. Ties are broken by ascending user id. At most n places are
// returned; n <= 0 returns the full ranking.
func TopMonthly(table models.PresenceTable, dir models.UserDirectory, ym models.YearMonth, n int) []Ranking {
	ranking := make([]Ranking, 0)
	for userID, days := range table {
		intervals := make([]int, 0, len(days))
		for date, iv := range days {
			if ym.Contains(date) {
				intervals = append(intervals, Interval(iv.Start, iv.End))
			}
		}
		if len(intervals) == 0 {
			continue
		}
		ranking = append(ranking, Ranking{
			UserID: userID,
			Name:   DisplayName(dir, userID),
			Avatar: dir[userID].Avatar,
			Mean:   Mean(intervals),
		})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Mean != ranking[j].Mean {
			return ranking[i].Mean > ranking[j].Mean
		}
		return ranking[i].UserID < ranking[j].UserID
	})

	if n > 0 && len(ranking) > n {
		ranking = ranking[:n]
	}
	return ranking
}
