package ingestion

import "time"

// Fragment wraps one file's accepted records and the time span they cover.
// A fragment is only constructed for files with at least one valid record
// and a resolvable start/end; everything else is discarded upstream with a
// reason recorded in the ingest report.
type Fragment struct {
	Kind       RecordKind
	SourceFile string
	Records    []Record
	Start      time.Time
	End        time.Time
}

// Overlaps reports whether the two fragments' time spans intersect.
// Touching endpoints count as an overlap. Symmetric by construction.
func (f Fragment) Overlaps(other Fragment) bool {
	return !(f.End.Before(other.Start) || f.Start.After(other.End))
}
