package parser

import (
	"strings"

	ingestion "fleet-telemetry/internal/ingestion/domain"
)

const (
	gpsDelimiter  = ";"
	gpsMinColumns = 5
)

// GPSParser reads GPS fix files: semicolon rows of
// timestamp;latitude;longitude;altitude;speed. The timestamp column may use
// the comma-separated date/time variant some firmware versions write.
type GPSParser struct {
	normalizer *Normalizer
}

// Kind returns the GPS family.
func (p *GPSParser) Kind() ingestion.RecordKind { return ingestion.KindGPS }

// Parse accepts rows with at least five columns and finite coordinates.
func (p *GPSParser) Parse(content []byte, sourceFile string) Result {
	var result Result
	for _, line := range splitLines(content) {
		if isTypeMarkerLine(line.text) || isLabelLine(line.text) {
			continue
		}
		fields := strings.Split(line.text, gpsDelimiter)
		if len(fields) < gpsMinColumns {
			result.discard(sourceFile, line.number, line.text, "too few columns")
			continue
		}

		lat, ok1 := parseFinite(fields[1])
		lon, ok2 := parseFinite(fields[2])
		alt, ok3 := parseFinite(fields[3])
		speed, ok4 := parseFinite(fields[4])
		if !ok1 || !ok2 || !ok3 || !ok4 {
			result.discard(sourceFile, line.number, line.text, "non-finite value")
			continue
		}

		ts, resolved := p.normalizer.Normalize(fields[0])
		if !resolved {
			result.Fallbacks++
		}

		result.Records = append(result.Records, ingestion.GPSRecord{
			TS:        ts,
			Latitude:  lat,
			Longitude: lon,
			Altitude:  alt,
			Speed:     speed,
		})
	}
	return result
}
