package kpi

// ZoneKind classifies an organization zone.
type ZoneKind string

const (
	ZonePark     ZoneKind = "park"
	ZoneWorkshop ZoneKind = "workshop"
	ZoneOther    ZoneKind = "other"
)

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Zone is an organization-owned geographic area. Geometry is a closed polygon
// given as its vertices; rectangles are just the four-corner case.
type Zone struct {
	ID      string
	OrgID   string
	Name    string
	Kind    ZoneKind
	Polygon []Point
}

// Contains tests polygon containment by ray casting: a point is inside when a
// horizontal ray from it crosses the boundary an odd number of times.
func (z Zone) Contains(p Point) bool {
	vertices := z.Polygon
	if len(vertices) < 3 {
		return false
	}
	inside := false
	j := len(vertices) - 1
	for i := 0; i < len(vertices); i++ {
		vi, vj := vertices[i], vertices[j]
		if (vi.Latitude > p.Latitude) != (vj.Latitude > p.Latitude) {
			crossing := (vj.Longitude-vi.Longitude)*(p.Latitude-vi.Latitude)/(vj.Latitude-vi.Latitude) + vi.Longitude
			if p.Longitude < crossing {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// LocationClass is where a GPS point sits relative to the organization zones.
type LocationClass int

const (
	LocationOut LocationClass = iota
	LocationPark
	LocationWorkshop
)

// Locator classifies points against a fixed zone set.
type Locator struct {
	zones []Zone
}

// NewLocator constructs a locator over the organization's zones.
func NewLocator(zones []Zone) *Locator {
	return &Locator{zones: zones}
}

// Classify returns the class of the first zone containing the point, with
// workshop taking precedence over park. Containment in an "other" zone is
// still out-of-park.
func (l *Locator) Classify(p Point) LocationClass {
	class := LocationOut
	for _, zone := range l.zones {
		if !zone.Contains(p) {
			continue
		}
		switch zone.Kind {
		case ZoneWorkshop:
			return LocationWorkshop
		case ZonePark:
			class = LocationPark
		}
	}
	return class
}
