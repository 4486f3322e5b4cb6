package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"presence/internal/cache"
	"presence/internal/models"
	"presence/internal/repository"
	"presence/internal/stats"
)

const (
	PresenceKey = "presence"
	UsersKey    = "users"
)

var ErrInvalidMonth = errors.New("invalid month, expected YYYY-MM")

// WeekdayLabels are the display names of weekday indexes, Monday first.
var WeekdayLabels = [stats.DaysInWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// PresenceSource loads the presence table.
type PresenceSource interface {
	Load(ctx context.Context) (models.PresenceTable, error)
}

// UserSource loads the user directory.
type UserSource interface {
	Load(ctx context.Context) (models.UserDirectory, error)
}

type UserSummary struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type WeekdayValue struct {
	Day     string  `json:"day"`
	Seconds float64 `json:"seconds"`
}

type WeekdayStartEnd struct {
	Day   string  `json:"day"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// UserWeekdays holds one user's total presence per weekday within a month.
type UserWeekdays struct {
	UserID int                   `json:"user_id"`
	Name   string                `json:"name"`
	Totals [stats.DaysInWeek]int `json:"totals"`
}

// MonthlyReport is the input of the exporters.
type MonthlyReport struct {
	Month       models.YearMonth `json:"month"`
	GeneratedAt time.Time        `json:"generated_at"`
	Ranking     []stats.Ranking  `json:"ranking"`
	Weekdays    []UserWeekdays   `json:"weekdays"`
}

// PresenceService answers presence questions from the memoized sources.
// Unknown users are reported with ok == false, never as an error.
type PresenceService struct {
	presence  *cache.Loader[models.PresenceTable]
	users     *cache.Loader[models.UserDirectory]
	reports   repository.ReportCache
	reportTTL time.Duration
	logger    zerolog.Logger
}

// NewPresenceService binds both sources to memo. reports and logger may be nil.
func NewPresenceService(
	memo *cache.Memo,
	presence PresenceSource,
	users UserSource,
	reports repository.ReportCache,
	logger *zerolog.Logger,
) *PresenceService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &PresenceService{
		presence:  cache.NewLoader(memo, PresenceKey, presence.Load),
		users:     cache.NewLoader(memo, UsersKey, users.Load),
		reports:   reports,
		reportTTL: memo.TTL(),
		logger:    logger.With().Str("component", "presence_service").Logger(),
	}
}

// ParseMonth parses a YYYY-MM argument.
func ParseMonth(value string) (models.YearMonth, error) {
	ym, err := models.ParseYearMonth(value)
	if err != nil {
		return models.YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidMonth, value)
	}
	return ym, nil
}

// Ready loads both sources through the cache.
func (s *PresenceService) Ready(ctx context.Context) error {
	if _, err := s.presence.Get(ctx); err != nil {
		return fmt.Errorf("presence data: %w", err)
	}
	if _, err := s.users.Get(ctx); err != nil {
		return fmt.Errorf("user data: %w", err)
	}
	return nil
}

func (s *PresenceService) Users(ctx context.Context) ([]UserSummary, error) {
	table, err := s.presence.Get(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := s.users.Get(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	result := make([]UserSummary, 0, len(ids))
	for _, id := range ids {
		result = append(result, UserSummary{
			UserID: id,
			Name:   stats.DisplayName(dir, id),
			Avatar: dir[id].Avatar,
		})
	}
	return result, nil
}

func (s *PresenceService) UserProfile(ctx context.Context, userID int) (models.UserProfile, bool, error) {
	dir, err := s.users.Get(ctx)
	if err != nil {
		return models.UserProfile{}, false, err
	}
	profile, ok := dir[userID]
	return profile, ok, nil
}

// PresenceWeekday returns the total presence per weekday.
func (s *PresenceService) PresenceWeekday(ctx context.Context, userID int) ([]WeekdayValue, bool, error) {
	days, ok, err := s.userPresence(ctx, userID)
	if err != nil || !ok {
		return nil, ok, err
	}
	buckets := stats.GroupByWeekday(days)
	result := make([]WeekdayValue, 0, stats.DaysInWeek)
	for i, bucket := range buckets {
		result = append(result, WeekdayValue{Day: WeekdayLabels[i], Seconds: float64(stats.Sum(bucket))})
	}
	return result, true, nil
}

// MeanTimeWeekday returns the mean presence per weekday.
func (s *PresenceService) MeanTimeWeekday(ctx context.Context, userID int) ([]WeekdayValue, bool, error) {
	days, ok, err := s.userPresence(ctx, userID)
	if err != nil || !ok {
		return nil, ok, err
	}
	buckets := stats.GroupByWeekday(days)
	result := make([]WeekdayValue, 0, stats.DaysInWeek)
	for i, bucket := range buckets {
		result = append(result, WeekdayValue{Day: WeekdayLabels[i], Seconds: stats.Mean(bucket)})
	}
	return result, true, nil
}

// PresenceStartEnd returns the mean arrival and departure time per weekday.
func (s *PresenceService) PresenceStartEnd(ctx context.Context, userID int) ([]WeekdayStartEnd, bool, error) {
	days, ok, err := s.userPresence(ctx, userID)
	if err != nil || !ok {
		return nil, ok, err
	}
	means := stats.MeanTimeOfPresence(days)
	result := make([]WeekdayStartEnd, 0, stats.DaysInWeek)
	for i, m := range means {
		result = append(result, WeekdayStartEnd{Day: WeekdayLabels[i], Start: m.Start, End: m.End})
	}
	return result, true, nil
}

func (s *PresenceService) MeanByMonth(ctx context.Context, userID int) ([12]float64, bool, error) {
	days, ok, err := s.userPresence(ctx, userID)
	if err != nil || !ok {
		return [12]float64{}, ok, err
	}
	return stats.MeanByMonth(days), true, nil
}

func (s *PresenceService) Months(ctx context.Context) ([]models.YearMonth, error) {
	table, err := s.presence.Get(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Months(table), nil
}

// TopMonthly returns the n best users of ym. Results are kept in the report
// cache under a key tied to both source snapshots, so a reload of either file
// never serves an outdated ranking.
func (s *PresenceService) TopMonthly(ctx context.Context, ym models.YearMonth, n int) ([]stats.Ranking, error) {
	table, loadedAt, err := s.presence.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	dir, usersLoadedAt, err := s.users.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("top:%s:%d:%d:%d", ym, n, loadedAt.UnixNano(), usersLoadedAt.UnixNano())
	if s.reports != nil {
		var cached []stats.Ranking
		err := s.reports.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("report cache read failed")
		}
	}

	ranking := stats.TopMonthly(table, dir, ym, n)

	if s.reports != nil {
		if err := s.reports.Set(ctx, key, ranking, s.reportTTL); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("report cache write failed")
		}
	}
	return ranking, nil
}

// MonthlyReport builds the full ranking and per-user weekday totals of ym.
func (s *PresenceService) MonthlyReport(ctx context.Context, ym models.YearMonth) (MonthlyReport, error) {
	table, loadedAt, err := s.presence.Snapshot(ctx)
	if err != nil {
		return MonthlyReport{}, err
	}
	dir, err := s.users.Get(ctx)
	if err != nil {
		return MonthlyReport{}, err
	}

	report := MonthlyReport{
		Month:       ym,
		GeneratedAt: loadedAt,
		Ranking:     stats.TopMonthly(table, dir, ym, 0),
		Weekdays:    make([]UserWeekdays, 0, len(table)),
	}
	for _, place := range report.Ranking {
		buckets := stats.GroupByWeekday(stats.FilterMonth(table[place.UserID], ym))
		row := UserWeekdays{UserID: place.UserID, Name: place.Name}
		for i, bucket := range buckets {
			row.Totals[i] = stats.Sum(bucket)
		}
		report.Weekdays = append(report.Weekdays, row)
	}
	sort.Slice(report.Weekdays, func(i, j int) bool {
		return report.Weekdays[i].UserID < report.Weekdays[j].UserID
	})
	return report, nil
}

func (s *PresenceService) userPresence(ctx context.Context, userID int) (models.DailyPresence, bool, error) {
	table, err := s.presence.Get(ctx)
	if err != nil {
		return nil, false, err
	}
	days, ok := table[userID]
	return days, ok, nil
}
