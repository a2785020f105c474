package parser

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	ingestion "fleet-telemetry/internal/ingestion/domain"
)

// Result is one file's parse outcome: accepted records in file order plus
// the discard diagnostics for every rejected row. Parsing never fails on a
// malformed row; the row lands here instead.
type Result struct {
	Records   []ingestion.Record
	Discards  []ingestion.Discard
	Fallbacks int // rows whose timestamp resolved through the wall-clock fallback
}

func (r *Result) discard(sourceFile string, line int, context, reason string) {
	if len(context) > 120 {
		context = context[:120]
	}
	r.Discards = append(r.Discards, ingestion.Discard{
		SourceFile: sourceFile,
		Line:       line,
		Context:    context,
		Reason:     reason,
	})
}

// Parser turns one file's raw bytes into typed records of a single kind.
type Parser interface {
	Kind() ingestion.RecordKind
	Parse(content []byte, sourceFile string) Result
}

// ForKind returns the parser for a sensor family.
func ForKind(kind ingestion.RecordKind, normalizer *Normalizer) (Parser, error) {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	switch kind {
	case ingestion.KindStability:
		return &StabilityParser{normalizer: normalizer}, nil
	case ingestion.KindCAN:
		return &CANParser{normalizer: normalizer}, nil
	case ingestion.KindGPS:
		return &GPSParser{normalizer: normalizer}, nil
	case ingestion.KindRotativo:
		return &RotativoParser{normalizer: normalizer}, nil
	}
	return nil, errors.New("parser: unknown kind")
}

// LegacyHeader is the first-line metadata of legacy recorder files:
// "TYPE;dd/mm/yyyy hh:mm:ss[AM|PM];vehicleId;sessionNumber;flags".
type LegacyHeader struct {
	Kind          ingestion.RecordKind
	Timestamp     time.Time
	VehicleID     string
	SessionNumber int
	Flags         string
}

// ParseLegacyHeader extracts the legacy header when the line carries one.
func ParseLegacyHeader(line string, normalizer *Normalizer) (LegacyHeader, bool) {
	fields := strings.Split(strings.TrimSpace(line), ";")
	if len(fields) < 3 {
		return LegacyHeader{}, false
	}
	kind, ok := ingestion.KindFromMarker(fields[0])
	if !ok {
		return LegacyHeader{}, false
	}
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	header := LegacyHeader{Kind: kind, VehicleID: fields[2]}
	if ts, resolved := normalizer.Normalize(fields[1]); resolved {
		header.Timestamp = ts
	}
	if len(fields) > 3 {
		if seq, err := strconv.Atoi(strings.TrimSpace(fields[3])); err == nil {
			header.SessionNumber = seq
		}
	}
	if len(fields) > 4 {
		header.Flags = fields[4]
	}
	return header, true
}

// splitLines yields trimmed, non-empty lines with their 1-based numbers.
func splitLines(content []byte) []numberedLine {
	raw := strings.Split(string(content), "\n")
	lines := make([]numberedLine, 0, len(raw))
	for i, line := range raw {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, numberedLine{number: i + 1, text: line})
	}
	return lines
}

type numberedLine struct {
	number int
	text   string
}

// isTypeMarkerLine reports whether the line is a sensor-type header line.
func isTypeMarkerLine(line string) bool {
	field := line
	for _, sep := range []string{";", ","} {
		if head, _, found := strings.Cut(field, sep); found {
			field = head
			break
		}
	}
	_, ok := ingestion.KindFromMarker(strings.TrimSpace(field))
	return ok
}

// isLabelLine reports whether the line is a column-label row. Data rows always
// lead with a timestamp or a number; label rows lead with bare words.
func isLabelLine(line string) bool {
	field := line
	for _, sep := range []string{";", ","} {
		if head, _, found := strings.Cut(field, sep); found {
			field = head
			break
		}
	}
	return !strings.ContainsAny(field, "0123456789")
}

// parseFinite parses a required numeric column, rejecting NaN and infinities.
func parseFinite(s string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

// clamp01 forces v into [0,1]. Out-of-range values are normalized, not rejected.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
