package application

import (
	"fmt"

	ingestion "fleet-telemetry/internal/ingestion/domain"
	"fleet-telemetry/internal/ingestion/parser"
)

const (
	dropReasonNoValidData      = "no valid data"
	dropReasonInvalidDateRange = "invalid date range"
)

// BuildFragment parses one file and wraps its records into a time-spanned
// fragment. A nil fragment means the file was discarded; the report carries
// the reason either way.
func BuildFragment(p parser.Parser, content []byte, sourceFile string) (*ingestion.Fragment, ingestion.FileReport) {
	result := p.Parse(content, sourceFile)

	report := ingestion.FileReport{
		SourceFile: sourceFile,
		Kind:       p.Kind(),
		Accepted:   len(result.Records),
		Discarded:  len(result.Discards),
		Discards:   result.Discards,
	}
	if result.Fallbacks > 0 {
		report.Discards = append(report.Discards, ingestion.Discard{
			SourceFile: sourceFile,
			Reason:     fmt.Sprintf("%d timestamps resolved through wall-clock fallback", result.Fallbacks),
		})
	}

	if len(result.Records) == 0 {
		report.Dropped = true
		report.DropReason = dropReasonNoValidData
		return nil, report
	}

	start := result.Records[0].Timestamp()
	end := result.Records[len(result.Records)-1].Timestamp()
	if start.IsZero() || end.IsZero() || start.After(end) {
		report.Dropped = true
		report.DropReason = dropReasonInvalidDateRange
		return nil, report
	}

	return &ingestion.Fragment{
		Kind:       p.Kind(),
		SourceFile: sourceFile,
		Records:    result.Records,
		Start:      start,
		End:        end,
	}, report
}
