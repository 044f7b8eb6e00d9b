// Package trend computes per-marker deltas across consecutive reports.
package trend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rohanverma/lablens/internal/database"
)

// Fixed sentences used when no delta computation is possible.
const (
	InsufficientHistory = "Only one report is available, so trend direction is limited."
	NoComparableMarkers = "Not enough comparable markers for trend analysis."
)

// maxSentences caps how many marker deltas appear in the snapshot.
const maxSentences = 5

// Delta is a signed change for one marker between two reports.
type Delta struct {
	Name     string
	Previous float64
	Current  float64
}

// Change returns the signed delta.
func (d Delta) Change() float64 {
	return d.Current - d.Previous
}

// Compare computes deltas for markers present in both measurement sets.
// No smoothing or outlier rejection, raw consecutive-pair deltas only.
func Compare(current, previous []database.Measurement) []Delta {
	prev := make(map[string]float64, len(previous))
	for _, m := range previous {
		if _, seen := prev[m.Name]; !seen {
			prev[m.Name] = m.Value
		}
	}

	var deltas []Delta
	for _, m := range current {
		if p, ok := prev[m.Name]; ok {
			deltas = append(deltas, Delta{Name: m.Name, Previous: p, Current: m.Value})
		}
	}
	return deltas
}

// Snapshot renders the trend sentence for a report given its history,
// ordered oldest first with the target report last. Histories of zero or
// one report yield the fixed insufficient-history sentence.
func Snapshot(history [][]database.Measurement) string {
	if len(history) < 2 {
		return InsufficientHistory
	}

	current := history[len(history)-1]
	previous := history[len(history)-2]
	deltas := Compare(current, previous)
	if len(deltas) == 0 {
		return NoComparableMarkers
	}

	// Largest movements first.
	sort.SliceStable(deltas, func(i, j int) bool {
		return math.Abs(deltas[i].Change()) > math.Abs(deltas[j].Change())
	})
	if len(deltas) > maxSentences {
		deltas = deltas[:maxSentences]
	}

	var parts []string
	for _, d := range deltas {
		change := d.Change()
		switch {
		case change > 0:
			parts = append(parts, fmt.Sprintf("%s increased by %.2f", d.Name, change))
		case change < 0:
			parts = append(parts, fmt.Sprintf("%s decreased by %.2f", d.Name, math.Abs(change)))
		default:
			parts = append(parts, fmt.Sprintf("%s stayed stable", d.Name))
		}
	}
	return "Trend snapshot: " + strings.Join(parts, "; ") + "."
}
