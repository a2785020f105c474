package events

import "time"

// SessionCreated is published after the dedup guard persists a new session.
// KPI recomputation for the affected days hangs off this event.
type SessionCreated struct {
	SessionID  string    `json:"session_id"`
	VehicleID  string    `json:"vehicle_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Sequence   int       `json:"sequence"`
	OccurredAt time.Time `json:"occurred_at"`
}
