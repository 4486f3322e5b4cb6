// Package loader parses the two presence source files into the in-memory model.
//
// Both parsers are tolerant: a malformed row or user entry is dropped and
// reported as a Diagnostic while parsing continues. Only an unreadable source
// (or, for XML, a document that is not well-formed) fails the whole load.
package loader

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"presence/internal/metrics"
)

var (
	// ErrSourceUnavailable is returned when a source file cannot be opened or read.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedDocument is returned when the user document is not well-formed XML.
	ErrMalformedDocument = errors.New("malformed document")
)

// Diagnostic describes a source entry that was skipped.
type Diagnostic struct {
	Line   int
	Reason string
	Raw    string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s", d.Line, d.Reason)
	}
	return d.Reason
}

func openSource(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return f, nil
}

func reportDiagnostics(logger *zerolog.Logger, source, path string, diags []Diagnostic) {
	metrics.AddSkippedRows(source, len(diags))
	if logger == nil {
		return
	}
	for _, d := range diags {
		logger.Warn().
			Str("source", source).
			Str("path", path).
			Int("line", d.Line).
			Str("raw", d.Raw).
			Msg("skipped entry: " + d.Reason)
	}
}
