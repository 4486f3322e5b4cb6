package google

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"presence/internal/models"
	"presence/internal/report"
	"presence/internal/service"
	"presence/internal/stats"
)

type mockValues struct {
	mock.Mock
}

func (m *mockValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	return m.Called(ctx, spreadsheetID, rng).Error(0)
}

func (m *mockValues) Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error {
	return m.Called(ctx, spreadsheetID, rng, rows).Error(0)
}

func testDocument() report.Document {
	return report.Document{
		Filename: "presence_2013-09.xlsx",
		Report: service.MonthlyReport{
			Month: models.YearMonth{Year: 2013, Month: time.September},
			Ranking: []stats.Ranking{
				{UserID: 10, Name: "Maciej Z.", Avatar: "https://intranet.example.com/api/images/users/10", Mean: 26072.33},
				{UserID: 11, Name: "Maciej D.", Mean: 21537.5},
			},
		},
	}
}

func TestRankingRowValues(t *testing.T) {
	values := rankingRowValues(1, stats.Ranking{UserID: 10, Name: "Maciej Z.", Avatar: "a.png", Mean: 26072.33})

	expected := []interface{}{1, 10, "Maciej Z.", "07:14:32", "a.png"}
	assert.Equal(t, expected, values)
}

func TestRankingRows(t *testing.T) {
	updated := time.Date(2013, 10, 1, 0, 1, 0, 0, time.UTC)
	rows := rankingRows(testDocument(), updated)

	require.Len(t, rows, 4)
	assert.Equal(t, []interface{}{"Month", "2013-09", "Updated", "2013-10-01 00:01:00"}, rows[0])
	assert.Equal(t, "Place", rows[1][0])
	assert.Equal(t, 2, rows[3][0])
	assert.Equal(t, "05:58:58", rows[3][3])
}

func TestSheetsPublisher_Publish(t *testing.T) {
	logger := zerolog.New(io.Discard)
	values := new(mockValues)
	p := newSheetsPublisher(values, "sheet-id", "Ranking", &logger)
	ctx := context.Background()

	values.On("Clear", ctx, "sheet-id", "Ranking").Return(nil).Once()
	values.On("Update", ctx, "sheet-id", "Ranking!A1", mock.MatchedBy(func(rows [][]interface{}) bool {
		return len(rows) == 4
	})).Return(nil).Once()

	require.NoError(t, p.Publish(ctx, testDocument()))
	assert.Equal(t, "google_sheets", p.Name())
	values.AssertExpectations(t)
}

func TestSheetsPublisher_ClearFails(t *testing.T) {
	logger := zerolog.New(io.Discard)
	values := new(mockValues)
	p := newSheetsPublisher(values, "sheet-id", "Ranking", &logger)
	ctx := context.Background()

	values.On("Clear", ctx, "sheet-id", "Ranking").Return(errors.New("forbidden")).Once()

	err := p.Publish(ctx, testDocument())
	assert.ErrorContains(t, err, "clear Ranking: forbidden")
	values.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNewSheetsPublisher_MissingCredentials(t *testing.T) {
	logger := zerolog.New(io.Discard)
	_, err := NewSheetsPublisher(context.Background(), "/nonexistent/credentials.json", "id", "Ranking", &logger)
	assert.ErrorContains(t, err, "read credentials")
}
