package application

import (
	"sort"
	"time"

	ingestion "fleet-telemetry/internal/ingestion/domain"
)

// ClusterResult is the outcome of grouping one vehicle's fragments.
type ClusterResult struct {
	Accepted     []ingestion.SessionCandidate
	Insufficient int // candidates dropped for carrying fewer than two sensor kinds
}

// Cluster groups fragments whose time spans intersect into session candidates.
//
// The scan is greedy: each fragment, in ascending start order, joins the first
// existing group any of whose members it overlaps, else opens a new group.
// Groups are never merged after the fact; with the start ordering that is
// enough, since a fragment bridging two groups would have sorted before the
// second group's opener.
func Cluster(vehicleID string, fragments []ingestion.Fragment) ClusterResult {
	sorted := append([]ingestion.Fragment(nil), fragments...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var groups [][]ingestion.Fragment
	for _, fragment := range sorted {
		placed := false
		for i, group := range groups {
			if overlapsAny(fragment, group) {
				groups[i] = append(group, fragment)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []ingestion.Fragment{fragment})
		}
	}

	var result ClusterResult
	for _, group := range groups {
		candidate := ingestion.SessionCandidate{
			VehicleID: vehicleID,
			Fragments: group,
			Start:     group[0].Start,
			End:       group[0].End,
		}
		for _, member := range group[1:] {
			candidate.Start = minTime(candidate.Start, member.Start)
			candidate.End = maxTime(candidate.End, member.End)
		}
		if !candidate.Acceptable() {
			result.Insufficient++
			continue
		}
		result.Accepted = append(result.Accepted, candidate)
	}
	return result
}

func overlapsAny(fragment ingestion.Fragment, group []ingestion.Fragment) bool {
	for _, member := range group {
		if fragment.Overlaps(member) {
			return true
		}
	}
	return false
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
