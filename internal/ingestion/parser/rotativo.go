package parser

import (
	"strings"

	ingestion "fleet-telemetry/internal/ingestion/domain"
)

const (
	rotativoDelimiter  = ";"
	rotativoMinColumns = 2
)

// RotativoParser reads beacon state files: semicolon rows of timestamp;state
// where state is ON/OFF (older recorders write 1/0).
type RotativoParser struct {
	normalizer *Normalizer
}

// Kind returns the rotativo family.
func (p *RotativoParser) Kind() ingestion.RecordKind { return ingestion.KindRotativo }

// Parse accepts rows with at least two columns and a recognizable state.
func (p *RotativoParser) Parse(content []byte, sourceFile string) Result {
	var result Result
	for _, line := range splitLines(content) {
		if isTypeMarkerLine(line.text) || isLabelLine(line.text) {
			continue
		}
		fields := strings.Split(line.text, rotativoDelimiter)
		if len(fields) < rotativoMinColumns {
			result.discard(sourceFile, line.number, line.text, "too few columns")
			continue
		}

		state, ok := parseBeaconState(fields[1])
		if !ok {
			result.discard(sourceFile, line.number, line.text, "unknown beacon state")
			continue
		}

		ts, resolved := p.normalizer.Normalize(fields[0])
		if !resolved {
			result.Fallbacks++
		}

		result.Records = append(result.Records, ingestion.RotativoRecord{TS: ts, State: state})
	}
	return result
}

func parseBeaconState(s string) (ingestion.BeaconState, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON", "1":
		return ingestion.BeaconOn, true
	case "OFF", "0":
		return ingestion.BeaconOff, true
	}
	return "", false
}
