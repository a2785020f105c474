package parser

import (
	"strings"

	ingestion "fleet-telemetry/internal/ingestion/domain"
)

const (
	canDelimiter  = ","
	canMinColumns = 4
)

// CANParser reads decoded CAN CSV files produced by the external decoder:
// comma rows of timestamp,engineRpm,vehicleSpeed,fuelSystemStatus.
type CANParser struct {
	normalizer *Normalizer
}

// Kind returns the CAN family.
func (p *CANParser) Kind() ingestion.RecordKind { return ingestion.KindCAN }

// Parse accepts rows with at least four columns and finite numeric fields.
func (p *CANParser) Parse(content []byte, sourceFile string) Result {
	var result Result
	for _, line := range splitLines(content) {
		if isTypeMarkerLine(line.text) || isLabelLine(line.text) {
			continue
		}
		fields := strings.Split(line.text, canDelimiter)
		if len(fields) < canMinColumns {
			result.discard(sourceFile, line.number, line.text, "too few columns")
			continue
		}

		rpm, ok1 := parseFinite(fields[1])
		speed, ok2 := parseFinite(fields[2])
		fuel, ok3 := parseFinite(fields[3])
		if !ok1 || !ok2 || !ok3 {
			result.discard(sourceFile, line.number, line.text, "non-finite value")
			continue
		}

		ts, resolved := p.normalizer.Normalize(fields[0])
		if !resolved {
			result.Fallbacks++
		}

		result.Records = append(result.Records, ingestion.CANRecord{
			TS:               ts,
			EngineRPM:        rpm,
			VehicleSpeed:     speed,
			FuelSystemStatus: fuel,
		})
	}
	return result
}
