// Package report renders monthly presence reports as Excel workbooks and
// delivers them on a monthly schedule.
package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"presence/internal/models"
	"presence/internal/service"
	"presence/internal/stats"
)

const (
	RankingSheet  = "Ranking"
	WeekdaysSheet = "Weekdays"
)

// Source provides the data of a monthly report.
type Source interface {
	MonthlyReport(ctx context.Context, ym models.YearMonth) (service.MonthlyReport, error)
}

// Document is a rendered report ready for delivery.
type Document struct {
	Filename string
	Caption  string
	Data     []byte
	Report   service.MonthlyReport
}

// Reader returns a fresh reader over the workbook bytes.
func (d Document) Reader() *bytes.Reader {
	return bytes.NewReader(d.Data)
}

// Filename returns the workbook name of a month.
func Filename(ym models.YearMonth) string {
	return fmt.Sprintf("presence_%s.xlsx", ym)
}

// Exporter builds monthly workbooks.
type Exporter struct {
	source    Source
	newWriter func() ExcelWriter
	dir       string
	topN      int
}

// NewExporter creates an exporter. A non-empty dir keeps a copy of every
// workbook on disk; topN limits the ranking shown in the caption.
func NewExporter(source Source, newWriter func() ExcelWriter, dir string, topN int) *Exporter {
	if newWriter == nil {
		newWriter = NewExcelizeWriter
	}
	if topN <= 0 {
		topN = 5
	}
	return &Exporter{source: source, newWriter: newWriter, dir: dir, topN: topN}
}

// Build renders the report of ym.
func (e *Exporter) Build(ctx context.Context, ym models.YearMonth) (Document, error) {
	rep, err := e.source.MonthlyReport(ctx, ym)
	if err != nil {
		return Document{}, fmt.Errorf("monthly report %s: %w", ym, err)
	}

	excel := e.newWriter()
	defer excel.Close()

	if err := writeRanking(excel, rep.Ranking); err != nil {
		return Document{}, err
	}
	if err := writeWeekdays(excel, rep.Weekdays); err != nil {
		return Document{}, err
	}

	var buf bytes.Buffer
	if err := excel.Save(&buf); err != nil {
		return Document{}, fmt.Errorf("save excel: %w", err)
	}

	doc := Document{
		Filename: Filename(ym),
		Caption:  e.caption(rep),
		Data:     buf.Bytes(),
		Report:   rep,
	}

	if e.dir != "" {
		if err := os.MkdirAll(e.dir, 0o755); err != nil {
			return Document{}, fmt.Errorf("create export dir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(e.dir, doc.Filename), doc.Data, 0o644); err != nil {
			return Document{}, fmt.Errorf("write %s: %w", doc.Filename, err)
		}
	}
	return doc, nil
}

func (e *Exporter) caption(rep service.MonthlyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Presence report %s", rep.Month)
	if len(rep.Ranking) == 0 {
		b.WriteString("\nNo presence recorded.")
		return b.String()
	}
	for i, place := range rep.Ranking {
		if i == e.topN {
			break
		}
		fmt.Fprintf(&b, "\n%d. %s %s", i+1, place.Name, stats.FormatSeconds(place.Mean))
	}
	return b.String()
}

func writeRanking(excel ExcelWriter, ranking []stats.Ranking) error {
	if err := excel.AddSheet(RankingSheet); err != nil {
		return err
	}
	if err := excel.WriteHeader([]string{"Place", "User ID", "Name", "Mean presence", "Mean seconds", "Avatar"}); err != nil {
		return err
	}
	for i, place := range ranking {
		row := []any{i + 1, place.UserID, place.Name, stats.FormatSeconds(place.Mean), place.Mean, place.Avatar}
		if err := excel.WriteRow(row); err != nil {
			return err
		}
	}
	_ = excel.SetColumnWidth(3, 24)
	_ = excel.SetColumnWidth(6, 48)
	return nil
}

func writeWeekdays(excel ExcelWriter, rows []service.UserWeekdays) error {
	if err := excel.AddSheet(WeekdaysSheet); err != nil {
		return err
	}
	header := append([]string{"User ID", "Name"}, service.WeekdayLabels[:]...)
	if err := excel.WriteHeader(header); err != nil {
		return err
	}
	for _, r := range rows {
		row := make([]any, 0, len(header))
		row = append(row, r.UserID, r.Name)
		for _, total := range r.Totals {
			row = append(row, stats.FormatSeconds(float64(total)))
		}
		if err := excel.WriteRow(row); err != nil {
			return err
		}
	}
	_ = excel.SetColumnWidth(2, 24)
	return nil
}
