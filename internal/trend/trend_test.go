package trend

import (
	"strings"
	"testing"

	"github.com/rohanverma/lablens/internal/database"
)

func m(name string, value float64) database.Measurement {
	return database.Measurement{Name: name, Value: value}
}

func TestSnapshotInsufficientHistory(t *testing.T) {
	if got := Snapshot(nil); got != InsufficientHistory {
		t.Errorf("empty history: got %q", got)
	}
	if got := Snapshot([][]database.Measurement{{m("Glucose", 95)}}); got != InsufficientHistory {
		t.Errorf("single report: got %q", got)
	}
}

func TestSnapshotNoComparableMarkers(t *testing.T) {
	history := [][]database.Measurement{
		{m("Glucose", 95)},
		{m("Hemoglobin", 13)},
	}
	if got := Snapshot(history); got != NoComparableMarkers {
		t.Errorf("got %q", got)
	}
}

func TestSnapshotDirections(t *testing.T) {
	history := [][]database.Measurement{
		{m("Glucose", 95), m("Hemoglobin", 12.5), m("TSH", 2.1)},
		{m("Glucose", 105), m("Hemoglobin", 11.9), m("TSH", 2.1)},
	}
	got := Snapshot(history)
	if !strings.Contains(got, "Glucose increased by 10.00") {
		t.Errorf("missing increase sentence: %q", got)
	}
	if !strings.Contains(got, "Hemoglobin decreased by 0.60") {
		t.Errorf("missing decrease sentence: %q", got)
	}
	if !strings.Contains(got, "TSH stayed stable") {
		t.Errorf("missing stable sentence: %q", got)
	}
}

func TestSnapshotCapsAtFiveLargest(t *testing.T) {
	previous := []database.Measurement{
		m("A", 1), m("B", 1), m("C", 1), m("D", 1), m("E", 1), m("F", 1), m("G", 1),
	}
	current := []database.Measurement{
		m("A", 2), m("B", 11), m("C", 4), m("D", 21), m("E", 6), m("F", 31), m("G", 8),
	}
	got := Snapshot([][]database.Measurement{previous, current})

	if strings.Count(got, ";") != 4 {
		t.Errorf("expected 5 sentences, got %q", got)
	}
	// A moved least (+1) and must be dropped; F moved most (+30) and must lead.
	if strings.Contains(got, "A increased") {
		t.Errorf("smallest delta should be dropped: %q", got)
	}
	if !strings.HasPrefix(got, "Trend snapshot: F increased by 30.00") {
		t.Errorf("largest delta should lead: %q", got)
	}
}

func TestCompareUsesEarlierDuplicate(t *testing.T) {
	previous := []database.Measurement{m("Glucose", 90), m("Glucose", 200)}
	current := []database.Measurement{m("Glucose", 95)}
	deltas := Compare(current, previous)
	if len(deltas) != 1 || deltas[0].Previous != 90 {
		t.Errorf("unexpected deltas: %+v", deltas)
	}
}
