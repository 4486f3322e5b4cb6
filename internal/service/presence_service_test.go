package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/cache"
	"presence/internal/loader"
	"presence/internal/models"
	"presence/internal/repository"
)

var september = models.YearMonth{Year: 2013, Month: time.September}

type testEnv struct {
	svc     *PresenceService
	memo    *cache.Memo
	reports *repository.MemoryReportCache
	now     *time.Time
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	now := time.Date(2013, 10, 2, 8, 0, 0, 0, time.UTC)
	env := &testEnv{now: &now}

	env.memo = cache.New(10*time.Minute, cache.WithClock(func() time.Time { return *env.now }))
	env.reports = repository.NewMemoryReportCache(0, func() time.Time { return *env.now })
	env.svc = NewPresenceService(
		env.memo,
		loader.NewCSVLoader(filepath.Join("..", "loader", "testdata", "presence.csv"), &logger),
		loader.NewXMLLoader(filepath.Join("..", "loader", "testdata", "users.xml"), &logger),
		env.reports,
		&logger,
	)
	return env
}

func TestPresenceService_Users(t *testing.T) {
	env := newTestService(t)

	users, err := env.svc.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []UserSummary{
		{UserID: 10, Name: "Maciej Z.", Avatar: "https://intranet.example.com:443/api/images/users/10"},
		{UserID: 11, Name: "Maciej D.", Avatar: "https://intranet.example.com:443/api/images/users/11"},
	}, users)
}

func TestPresenceService_UnknownUser(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	weekday, ok, err := env.svc.PresenceWeekday(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, weekday)

	_, ok, err = env.svc.MeanTimeWeekday(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = env.svc.PresenceStartEnd(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	months, ok, err := env.svc.MeanByMonth(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, [12]float64{}, months)

	_, ok, err = env.svc.UserProfile(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPresenceService_PresenceWeekday(t *testing.T) {
	env := newTestService(t)

	result, ok, err := env.svc.PresenceWeekday(context.Background(), 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []WeekdayValue{
		{Day: "Mon", Seconds: 0},
		{Day: "Tue", Seconds: 30047},
		{Day: "Wed", Seconds: 24465},
		{Day: "Thu", Seconds: 23705},
		{Day: "Fri", Seconds: 0},
		{Day: "Sat", Seconds: 0},
		{Day: "Sun", Seconds: 0},
	}, result)
}

func TestPresenceService_MeanTimeWeekday(t *testing.T) {
	env := newTestService(t)

	result, ok, err := env.svc.MeanTimeWeekday(context.Background(), 11)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, result, 7)
	assert.Equal(t, "Thu", result[3].Day)
	assert.InDelta(t, (24123+21783)/2.0, result[3].Seconds, 0.001)
	assert.InDelta(t, (31021+28800)/2.0, result[1].Seconds, 0.001)
	assert.Zero(t, result[6].Seconds)
}

func TestPresenceService_PresenceStartEnd(t *testing.T) {
	env := newTestService(t)

	result, ok, err := env.svc.PresenceStartEnd(context.Background(), 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, WeekdayStartEnd{Day: "Tue", Start: 34745, End: 64792}, result[1])
	assert.Equal(t, WeekdayStartEnd{Day: "Mon"}, result[0])
}

func TestPresenceService_MeanByMonth(t *testing.T) {
	env := newTestService(t)

	result, ok, err := env.svc.MeanByMonth(context.Background(), 11)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 21537.5, result[8], 0.001)
	assert.InDelta(t, 28800, result[9], 0.001)
	assert.Zero(t, result[0])
}

func TestPresenceService_Months(t *testing.T) {
	env := newTestService(t)

	months, err := env.svc.Months(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.YearMonth{september, {Year: 2013, Month: time.October}}, months)
}

func TestPresenceService_TopMonthly(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	top, err := env.svc.TopMonthly(ctx, september, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 10, top[0].UserID)
	assert.Equal(t, "Maciej Z.", top[0].Name)
	assert.InDelta(t, 78217/3.0, top[0].Mean, 0.001)
	assert.Equal(t, 11, top[1].UserID)
	assert.Equal(t, 1, env.reports.Len())

	again, err := env.svc.TopMonthly(ctx, september, 5)
	require.NoError(t, err)
	assert.Equal(t, top, again)
	assert.Equal(t, 1, env.reports.Len())

	one, err := env.svc.TopMonthly(ctx, september, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
	assert.Equal(t, 2, env.reports.Len())
}

func TestPresenceService_TopMonthlyFollowsReload(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.TopMonthly(ctx, september, 5)
	require.NoError(t, err)
	first, ok := env.memo.Entry(PresenceKey)
	require.True(t, ok)

	*env.now = env.now.Add(5 * time.Minute)
	_, err = env.svc.TopMonthly(ctx, september, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, env.reports.Len())

	*env.now = env.now.Add(5 * time.Minute)
	_, err = env.svc.TopMonthly(ctx, september, 5)
	require.NoError(t, err)
	second, ok := env.memo.Entry(PresenceKey)
	require.True(t, ok)
	assert.True(t, second.Timestamp.After(first.Timestamp))
	// the ranking of the previous snapshot expired together with it
	assert.Equal(t, 1, env.reports.Len())
}

type renamingUsers struct {
	loads int
}

func (r *renamingUsers) Load(context.Context) (models.UserDirectory, error) {
	r.loads++
	name := "Maciej Z."
	if r.loads > 1 {
		name = "Maciej Zientarski"
	}
	return models.UserDirectory{10: {UserID: 10, Name: name}}, nil
}

func TestPresenceService_TopMonthlyFollowsUsersReload(t *testing.T) {
	now := time.Date(2013, 10, 2, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	users := &renamingUsers{}
	svc := NewPresenceService(
		cache.New(10*time.Minute, cache.WithClock(clock)),
		loader.NewCSVLoader(filepath.Join("..", "loader", "testdata", "presence.csv"), nil),
		users,
		repository.NewMemoryReportCache(0, clock),
		nil,
	)
	ctx := context.Background()

	// directory loaded at 08:00, presence at 08:05
	_, _, err := svc.UserProfile(ctx, 10)
	require.NoError(t, err)
	now = now.Add(5 * time.Minute)
	top, err := svc.TopMonthly(ctx, september, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Maciej Z.", top[0].Name)

	// only the directory expires at 08:10
	now = now.Add(5 * time.Minute)
	top, err = svc.TopMonthly(ctx, september, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 2, users.loads)
	assert.Equal(t, "Maciej Zientarski", top[0].Name)
}

func TestPresenceService_MonthlyReport(t *testing.T) {
	env := newTestService(t)

	report, err := env.svc.MonthlyReport(context.Background(), september)
	require.NoError(t, err)
	assert.Equal(t, september, report.Month)
	require.Len(t, report.Ranking, 2)
	require.Len(t, report.Weekdays, 2)

	assert.Equal(t, UserWeekdays{
		UserID: 11,
		Name:   "Maciej D.",
		Totals: [7]int{21721, 31021, 24151, 45906, 6426, 0, 0},
	}, report.Weekdays[1])
	assert.Equal(t, [7]int{0, 30047, 24465, 23705, 0, 0, 0}, report.Weekdays[0].Totals)
}

func TestPresenceService_MonthlyReportEmptyMonth(t *testing.T) {
	env := newTestService(t)

	report, err := env.svc.MonthlyReport(context.Background(), models.YearMonth{Year: 2014, Month: time.January})
	require.NoError(t, err)
	assert.Empty(t, report.Ranking)
	assert.Empty(t, report.Weekdays)
}

func TestPresenceService_SourceUnavailable(t *testing.T) {
	logger := zerolog.New(io.Discard)
	svc := NewPresenceService(
		cache.New(time.Minute),
		loader.NewCSVLoader(filepath.Join(t.TempDir(), "missing.csv"), &logger),
		loader.NewXMLLoader(filepath.Join(t.TempDir(), "missing.xml"), &logger),
		nil,
		&logger,
	)

	_, err := svc.Users(context.Background())
	assert.ErrorIs(t, err, loader.ErrSourceUnavailable)
	_, _, err = svc.PresenceWeekday(context.Background(), 10)
	assert.ErrorIs(t, err, loader.ErrSourceUnavailable)
	assert.Error(t, svc.Ready(context.Background()))
}

func TestParseMonth(t *testing.T) {
	ym, err := ParseMonth("2013-09")
	require.NoError(t, err)
	assert.Equal(t, september, ym)

	_, err = ParseMonth("09/2013")
	assert.True(t, errors.Is(err, ErrInvalidMonth))
}
