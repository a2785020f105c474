package parser

import (
	"strconv"
	"strings"
	"time"
)

// DateOrder resolves the day/month reading of a slash date whose two leading
// fields are both <= 12. The recorders never say which convention they used,
// so the choice is configuration, not a hidden default.
type DateOrder string

const (
	// DateOrderMonthFirst reads "a/b/yyyy" as month/day. Observed default.
	DateOrderMonthFirst DateOrder = "month_first"
	// DateOrderDayFirst reads "a/b/yyyy" as day/month.
	DateOrderDayFirst DateOrder = "day_first"
)

// IsValid reports whether the order is a known convention.
func (o DateOrder) IsValid() bool {
	return o == DateOrderMonthFirst || o == DateOrderDayFirst
}

// Clock provides time for the lossy fallback branch.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Normalizer resolves the free-form timestamp strings the recorders emit
// into absolute instants. Resolution order, first match wins:
//
//  1. ISO-8601.
//  2. "D/M/YYYY H:M:S" (24-hour): a leading field > 12 pins the day; when
//     both fields are <= 12 the configured DateOrder decides.
//  3. "M/D/YYYY H:M:S AM|PM" (12-hour clock).
//  4. "D/M/YYYY,H:M:S" (GPS comma variant, day-first convention).
//  5. Wall-clock fallback. Deliberately lossy: the caller gets the current
//     instant and ok=false, never an error.
//
// Branches 1-4 are referentially transparent; only the fallback reads the clock.
type Normalizer struct {
	order DateOrder
	clock Clock
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithDateOrder overrides the ambiguous-date convention.
func WithDateOrder(order DateOrder) NormalizerOption {
	return func(n *Normalizer) {
		if order.IsValid() {
			n.order = order
		}
	}
}

// WithClock overrides the fallback clock.
func WithClock(clock Clock) NormalizerOption {
	return func(n *Normalizer) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// NewNormalizer constructs a Normalizer with month-first default order.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{order: DateOrderMonthFirst, clock: SystemClock{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalize resolves s to an absolute instant. ok is false only when the
// fallback branch fired; callers must treat that result as low-confidence.
func (n *Normalizer) Normalize(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)

	for _, layout := range isoLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}

	if ts, ok := n.parseSlash(s); ok {
		return ts, true
	}
	if ts, ok := n.parseTwelveHour(s); ok {
		return ts, true
	}
	if ts, ok := parseCommaVariant(s); ok {
		return ts, true
	}

	return n.clock.Now(), false
}

// parseSlash handles branch 2: "D/M/YYYY H:M:S" without an AM/PM marker.
func (n *Normalizer) parseSlash(s string) (time.Time, bool) {
	datePart, timePart, ok := strings.Cut(s, " ")
	if !ok || hasMeridiem(timePart) {
		return time.Time{}, false
	}
	first, second, year, ok := splitSlashDate(datePart)
	if !ok {
		return time.Time{}, false
	}
	hour, minute, sec, ok := splitClock(timePart)
	if !ok || hour > 23 {
		return time.Time{}, false
	}
	day, month, ok := n.resolvePair(first, second)
	if !ok {
		return time.Time{}, false
	}
	return makeDate(year, month, day, hour, minute, sec)
}

// parseTwelveHour handles branch 3: "M/D/YYYY H:M:S AM|PM".
func (n *Normalizer) parseTwelveHour(s string) (time.Time, bool) {
	upper := strings.ToUpper(s)
	var pm bool
	switch {
	case strings.HasSuffix(upper, "AM"):
	case strings.HasSuffix(upper, "PM"):
		pm = true
	default:
		return time.Time{}, false
	}
	body := strings.TrimSpace(upper[:len(upper)-2])

	datePart, timePart, ok := strings.Cut(body, " ")
	if !ok {
		return time.Time{}, false
	}
	month, day, year, ok := splitSlashDate(datePart)
	if !ok {
		return time.Time{}, false
	}
	hour, minute, sec, ok := splitClock(timePart)
	if !ok || hour < 1 || hour > 12 {
		return time.Time{}, false
	}
	// 12 AM is midnight, 12 PM stays noon.
	if hour == 12 {
		hour = 0
	}
	if pm {
		hour += 12
	}
	return makeDate(year, month, day, hour, minute, sec)
}

// parseCommaVariant handles branch 4: "D/M/YYYY,H:M:S", the GPS-specific form.
// The GPS firmware writes day-first dates; a field > 12 still pins the day.
func parseCommaVariant(s string) (time.Time, bool) {
	datePart, timePart, ok := strings.Cut(s, ",")
	if !ok {
		return time.Time{}, false
	}
	first, second, year, ok := splitSlashDate(datePart)
	if !ok {
		return time.Time{}, false
	}
	hour, minute, sec, ok := splitClock(strings.TrimSpace(timePart))
	if !ok || hour > 23 {
		return time.Time{}, false
	}
	day, month := first, second
	if first <= 12 && second > 12 {
		day, month = second, first
	}
	return makeDate(year, month, day, hour, minute, sec)
}

// resolvePair turns the two leading slash-date fields into (day, month).
func (n *Normalizer) resolvePair(first, second int) (day, month int, ok bool) {
	switch {
	case first > 12 && second > 12:
		return 0, 0, false
	case first > 12:
		return first, second, true
	case second > 12:
		return second, first, true
	case n.order == DateOrderDayFirst:
		return first, second, true
	default:
		return second, first, true
	}
}

func splitSlashDate(s string) (first, second, year int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	first, err1 := strconv.Atoi(parts[0])
	second, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	if first < 1 || second < 1 || year < 1000 || year > 9999 {
		return 0, 0, 0, false
	}
	return first, second, year, true
}

func splitClock(s string) (hour, minute, sec int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	if hour < 0 || minute < 0 || minute > 59 || sec < 0 || sec > 59 {
		return 0, 0, 0, false
	}
	return hour, minute, sec, true
}

func makeDate(year, month, day, hour, minute, sec int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	ts := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	// time.Date normalizes impossible dates (Feb 30) forward; reject those.
	if ts.Day() != day || ts.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return ts, true
}

func hasMeridiem(s string) bool {
	upper := strings.ToUpper(strings.TrimSpace(s))
	return strings.HasSuffix(upper, "AM") || strings.HasSuffix(upper, "PM")
}
