package kpi

import (
	"sort"
	"time"
)

// BeaconEvent is one rotating-beacon state transition.
type BeaconEvent struct {
	TS time.Time
	On bool
}

// BeaconTimeline answers "was the beacon on at instant t" with last-write-wins
// semantics: the most recent event at or before t decides, OFF when none does.
// No timers, no decay; transitions are driven only by event timestamps.
type BeaconTimeline struct {
	events []BeaconEvent
}

// NewBeaconTimeline builds a timeline, sorting events ascending.
func NewBeaconTimeline(events []BeaconEvent) BeaconTimeline {
	sorted := append([]BeaconEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TS.Before(sorted[j].TS) })
	return BeaconTimeline{events: sorted}
}

// StateAt returns the beacon state at ts.
func (t BeaconTimeline) StateAt(ts time.Time) bool {
	state := false
	for _, event := range t.events {
		if event.TS.After(ts) {
			break
		}
		state = event.On
	}
	return state
}
