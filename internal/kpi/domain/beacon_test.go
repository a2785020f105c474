package kpi

import (
	"testing"
	"time"
)

func at(min int) time.Time {
	return time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC).Add(time.Duration(min) * time.Minute)
}

func TestBeaconTimelineStateAt(t *testing.T) {
	timeline := NewBeaconTimeline([]BeaconEvent{
		{TS: at(10), On: true},
		{TS: at(20), On: false},
		{TS: at(30), On: true},
	})

	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"before first event", at(5), false},
		{"exactly at ON", at(10), true},
		{"between ON and OFF", at(15), true},
		{"exactly at OFF", at(20), false},
		{"after last event", at(45), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := timeline.StateAt(tt.ts); got != tt.want {
				t.Fatalf("StateAt(%v) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}

func TestBeaconTimelineSortsInput(t *testing.T) {
	timeline := NewBeaconTimeline([]BeaconEvent{
		{TS: at(30), On: true},
		{TS: at(10), On: true},
		{TS: at(20), On: false},
	})
	if timeline.StateAt(at(25)) {
		t.Fatalf("state at 25 should be OFF after sorting")
	}
}

func TestBeaconTimelineEmpty(t *testing.T) {
	timeline := NewBeaconTimeline(nil)
	if timeline.StateAt(at(0)) {
		t.Fatalf("empty timeline defaults to OFF")
	}
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		eventType string
		want      Severity
	}{
		{"evento_critico", SeverityHigh},
		{"CURVA_BRUSCA_DETECTADA", SeverityHigh},
		{"aviso_moderado", SeverityModerate},
		{"speed_warning", SeverityModerate},
		{"heartbeat", SeverityNone},
		{"", SeverityNone},
	}
	for _, tt := range tests {
		if got := ClassifySeverity(tt.eventType); got != tt.want {
			t.Fatalf("ClassifySeverity(%q) = %v, want %v", tt.eventType, got, tt.want)
		}
	}
}
