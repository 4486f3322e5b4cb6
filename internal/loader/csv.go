package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"presence/internal/models"
)

const presenceColumns = 4

// CSVLoader reads the presence file: user_id,YYYY-MM-DD,HH:MM:SS,HH:MM:SS.
type CSVLoader struct {
	path   string
	logger *zerolog.Logger
}

// NewCSVLoader creates a loader for the presence file at path.
func NewCSVLoader(path string, logger *zerolog.Logger) *CSVLoader {
	return &CSVLoader{path: path, logger: logger}
}

// Load parses the presence file. Skipped rows are logged as warnings.
func (l *CSVLoader) Load(_ context.Context) (models.PresenceTable, error) {
	f, err := openSource(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, diags, err := ParsePresence(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.path, err)
	}
	reportDiagnostics(l.logger, "csv", l.path, diags)

	if l.logger != nil {
		l.logger.Debug().
			Str("path", l.path).
			Int("users", len(table)).
			Int("skipped", len(diags)).
			Msg("presence data loaded")
	}
	return table, nil
}

// ParsePresence parses presence rows from r. Every line is parsed on its own,
// so a malformed row never affects the rows after it. Malformed rows are
// skipped and returned as diagnostics; a later row for the same user and date
// replaces an earlier one. A non-numeric first row is treated as a header.
func ParsePresence(r io.Reader) (models.PresenceTable, []Diagnostic, error) {
	table := make(models.PresenceTable)
	var diags []Diagnostic

	scanner := bufio.NewScanner(r)
	first := true
	for lineNo := 1; scanner.Scan(); lineNo++ {
		raw := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		fields, err := splitRow(raw)
		if err != nil {
			diags = append(diags, Diagnostic{Line: lineNo, Reason: err.Error(), Raw: raw})
			first = false
			continue
		}

		if first {
			first = false
			if isHeader(fields) {
				continue
			}
		}

		rec, err := parseRecord(fields)
		if err != nil {
			diags = append(diags, Diagnostic{Line: lineNo, Reason: err.Error(), Raw: raw})
			continue
		}
		table.Add(rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	return table, diags, nil
}

// splitRow parses a single CSV line; quoted fields may not span lines.
func splitRow(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	fields, err := reader.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, parseErr.Err
		}
		return nil, err
	}
	return fields, nil
}

func isHeader(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	return err != nil
}

func parseRecord(fields []string) (models.PresenceRecord, error) {
	if len(fields) != presenceColumns {
		return models.PresenceRecord{}, fmt.Errorf("expected %d columns, got %d", presenceColumns, len(fields))
	}

	userID, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return models.PresenceRecord{}, fmt.Errorf("invalid user id %q", fields[0])
	}
	date, err := models.ParseDate(strings.TrimSpace(fields[1]))
	if err != nil {
		return models.PresenceRecord{}, err
	}
	start, err := models.ParseTimeOfDay(strings.TrimSpace(fields[2]))
	if err != nil {
		return models.PresenceRecord{}, err
	}
	end, err := models.ParseTimeOfDay(strings.TrimSpace(fields[3]))
	if err != nil {
		return models.PresenceRecord{}, err
	}

	return models.PresenceRecord{UserID: userID, Date: date, Start: start, End: end}, nil
}
