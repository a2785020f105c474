package parser

import (
	"math"
	"strings"

	ingestion "fleet-telemetry/internal/ingestion/domain"
)

const (
	stabilityDelimiter  = ";"
	stabilityMinColumns = 7
	gravity             = 9.81
)

// StabilityParser reads legacy stability files: semicolon rows of
// timestamp;ax;ay;az;gx;gy;gz with an optional eighth stability-index column.
type StabilityParser struct {
	normalizer *Normalizer
}

// Kind returns the stability family.
func (p *StabilityParser) Kind() ingestion.RecordKind { return ingestion.KindStability }

// Parse accepts rows with at least seven columns whose numeric fields are all
// finite. Malformed rows go to the discard list; the method never errors.
func (p *StabilityParser) Parse(content []byte, sourceFile string) Result {
	var result Result
	for _, line := range splitLines(content) {
		if isTypeMarkerLine(line.text) || isLabelLine(line.text) {
			continue
		}
		fields := strings.Split(line.text, stabilityDelimiter)
		if len(fields) < stabilityMinColumns {
			result.discard(sourceFile, line.number, line.text, "too few columns")
			continue
		}

		values := make([]float64, 6)
		valid := true
		for i := 0; i < 6; i++ {
			value, ok := parseFinite(fields[i+1])
			if !ok {
				result.discard(sourceFile, line.number, line.text, "non-finite value")
				valid = false
				break
			}
			values[i] = value
		}
		if !valid {
			continue
		}

		ts, resolved := p.normalizer.Normalize(fields[0])
		if !resolved {
			result.Fallbacks++
		}

		record := ingestion.StabilityRecord{
			TS:     ts,
			AccelX: values[0],
			AccelY: values[1],
			AccelZ: values[2],
			GyroX:  values[3],
			GyroY:  values[4],
			GyroZ:  values[5],
		}

		index, hasIndex := 0.0, false
		if len(fields) > stabilityMinColumns {
			index, hasIndex = parseFinite(fields[stabilityMinColumns])
		}
		if !hasIndex {
			index = deriveStabilityIndex(record)
		}
		record.StabilityIndex = clamp01(index)

		result.Records = append(result.Records, record)
	}
	return result
}

// deriveStabilityIndex scores how close the total acceleration sits to plain
// gravity: 1 at rest, falling toward 0 as lateral forces grow.
func deriveStabilityIndex(r ingestion.StabilityRecord) float64 {
	magnitude := math.Sqrt(r.AccelX*r.AccelX + r.AccelY*r.AccelY + r.AccelZ*r.AccelZ)
	return 1 - math.Abs(magnitude-gravity)/gravity
}
