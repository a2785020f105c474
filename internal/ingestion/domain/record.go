package ingestion

import "time"

// RecordKind identifies one of the four sensor families a recorder produces.
type RecordKind string

const (
	KindStability RecordKind = "stability"
	KindCAN       RecordKind = "can"
	KindGPS       RecordKind = "gps"
	KindRotativo  RecordKind = "rotativo"
)

// IsValid reports whether the kind is one of the four known families.
func (k RecordKind) IsValid() bool {
	switch k {
	case KindStability, KindCAN, KindGPS, KindRotativo:
		return true
	}
	return false
}

// KindFromMarker maps an in-file or in-filename type marker to a kind.
func KindFromMarker(marker string) (RecordKind, bool) {
	switch marker {
	case "ESTABILIDAD":
		return KindStability, true
	case "CAN":
		return KindCAN, true
	case "GPS":
		return KindGPS, true
	case "ROTATIVO":
		return KindRotativo, true
	}
	return "", false
}

// Marker returns the wire-format type marker for the kind.
func (k RecordKind) Marker() string {
	switch k {
	case KindStability:
		return "ESTABILIDAD"
	case KindCAN:
		return "CAN"
	case KindGPS:
		return "GPS"
	case KindRotativo:
		return "ROTATIVO"
	}
	return ""
}

// Record is the closed variant over the four sensor record types.
// Exactly StabilityRecord, CANRecord, GPSRecord and RotativoRecord implement it.
type Record interface {
	Kind() RecordKind
	Timestamp() time.Time
}

// StabilityRecord is one accelerometer/gyroscope sample.
type StabilityRecord struct {
	TS             time.Time
	AccelX         float64
	AccelY         float64
	AccelZ         float64
	GyroX          float64
	GyroY          float64
	GyroZ          float64
	StabilityIndex float64 // derived, clamped into [0,1]
}

func (r StabilityRecord) Kind() RecordKind     { return KindStability }
func (r StabilityRecord) Timestamp() time.Time { return r.TS }

// CANRecord is one decoded CAN bus sample.
type CANRecord struct {
	TS               time.Time
	EngineRPM        float64
	VehicleSpeed     float64
	FuelSystemStatus float64
}

func (r CANRecord) Kind() RecordKind     { return KindCAN }
func (r CANRecord) Timestamp() time.Time { return r.TS }

// GPSRecord is one position fix.
type GPSRecord struct {
	TS        time.Time
	Latitude  float64
	Longitude float64
	Altitude  float64
	Speed     float64
}

func (r GPSRecord) Kind() RecordKind     { return KindGPS }
func (r GPSRecord) Timestamp() time.Time { return r.TS }

// BeaconState is the rotating-beacon signal level.
type BeaconState string

const (
	BeaconOn  BeaconState = "ON"
	BeaconOff BeaconState = "OFF"
)

// RotativoRecord is one beacon state transition.
type RotativoRecord struct {
	TS    time.Time
	State BeaconState
}

func (r RotativoRecord) Kind() RecordKind     { return KindRotativo }
func (r RotativoRecord) Timestamp() time.Time { return r.TS }
