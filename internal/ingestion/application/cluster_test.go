package application

import (
	"testing"
	"time"

	ingestion "fleet-telemetry/internal/ingestion/domain"
)

func fragmentAt(kind ingestion.RecordKind, startMin, endMin int) ingestion.Fragment {
	base := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	return ingestion.Fragment{
		Kind:  kind,
		Start: base.Add(time.Duration(startMin) * time.Minute),
		End:   base.Add(time.Duration(endMin) * time.Minute),
	}
}

func TestClusterMergesOverlappingSpans(t *testing.T) {
	// Stability 10:00-10:05 and GPS 10:02-10:08 share one candidate
	// spanning 10:00-10:08.
	result := Cluster("VH-1", []ingestion.Fragment{
		fragmentAt(ingestion.KindStability, 0, 5),
		fragmentAt(ingestion.KindGPS, 2, 8),
	})
	if len(result.Accepted) != 1 {
		t.Fatalf("got %d candidates, want 1", len(result.Accepted))
	}
	candidate := result.Accepted[0]
	if candidate.VehicleID != "VH-1" {
		t.Fatalf("vehicle %q", candidate.VehicleID)
	}
	wantStart := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 5, 13, 10, 8, 0, 0, time.UTC)
	if !candidate.Start.Equal(wantStart) || !candidate.End.Equal(wantEnd) {
		t.Fatalf("span %v-%v, want %v-%v", candidate.Start, candidate.End, wantStart, wantEnd)
	}
	if len(candidate.Fragments) != 2 {
		t.Fatalf("got %d fragments, want 2", len(candidate.Fragments))
	}
}

func TestClusterKeepsDisjointSpansApart(t *testing.T) {
	result := Cluster("VH-1", []ingestion.Fragment{
		fragmentAt(ingestion.KindStability, 0, 5),
		fragmentAt(ingestion.KindGPS, 2, 8),
		fragmentAt(ingestion.KindStability, 60, 65),
		fragmentAt(ingestion.KindCAN, 61, 64),
	})
	if len(result.Accepted) != 2 {
		t.Fatalf("got %d candidates, want 2", len(result.Accepted))
	}
	if result.Accepted[0].End.After(result.Accepted[1].Start) {
		t.Fatalf("candidates overlap: %v after %v", result.Accepted[0].End, result.Accepted[1].Start)
	}
}

func TestClusterChainsTransitiveOverlaps(t *testing.T) {
	// 0-5 and 10-15 are disjoint but both touch the 4-12 fragment, so the
	// start-ordered scan chains all three into one candidate.
	result := Cluster("VH-1", []ingestion.Fragment{
		fragmentAt(ingestion.KindStability, 0, 5),
		fragmentAt(ingestion.KindStability, 10, 15),
		fragmentAt(ingestion.KindGPS, 4, 12),
	})
	if len(result.Accepted) != 1 {
		t.Fatalf("got %d accepted, want 1 (insufficient %d)", len(result.Accepted), result.Insufficient)
	}
	candidate := result.Accepted[0]
	if len(candidate.Fragments) != 3 {
		t.Fatalf("got %d fragments, want 3", len(candidate.Fragments))
	}
	wantEnd := time.Date(2024, 5, 13, 10, 15, 0, 0, time.UTC)
	if !candidate.End.Equal(wantEnd) {
		t.Fatalf("end %v, want %v", candidate.End, wantEnd)
	}
}

func TestClusterDropsSingleKindCandidates(t *testing.T) {
	result := Cluster("VH-1", []ingestion.Fragment{
		fragmentAt(ingestion.KindGPS, 0, 5),
		fragmentAt(ingestion.KindGPS, 3, 9),
	})
	if len(result.Accepted) != 0 {
		t.Fatalf("got %d accepted, want 0", len(result.Accepted))
	}
	if result.Insufficient != 1 {
		t.Fatalf("insufficient %d, want 1", result.Insufficient)
	}
}

func TestClusterOrderIndependentSpan(t *testing.T) {
	fragments := []ingestion.Fragment{
		fragmentAt(ingestion.KindGPS, 2, 8),
		fragmentAt(ingestion.KindStability, 0, 5),
	}
	result := Cluster("VH-1", fragments)
	if len(result.Accepted) != 1 {
		t.Fatalf("got %d candidates, want 1", len(result.Accepted))
	}
	if !result.Accepted[0].Start.Equal(fragmentAt(ingestion.KindStability, 0, 5).Start) {
		t.Fatalf("start %v not pulled from earliest fragment", result.Accepted[0].Start)
	}
}
