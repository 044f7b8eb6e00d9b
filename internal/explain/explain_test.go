package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/rohanverma/lablens/internal/assemble"
	"github.com/rohanverma/lablens/internal/database"
	"github.com/rohanverma/lablens/internal/trend"
)

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	response   string
	err        error
	lastPrompt string
}

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	m.lastPrompt = prompt
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func fptr(f float64) *float64 { return &f }

func payloadWith(reports ...[]database.Measurement) *assemble.Payload {
	p := &assemble.Payload{}
	for i, measurements := range reports {
		id := fmt.Sprintf("r%d", i+1)
		p.Reports = append(p.Reports, assemble.ReportContext{
			ReportID:       id,
			Date:           fmt.Sprintf("2026-0%d-01", i+1),
			ParameterCount: len(measurements),
			Measurements:   measurements,
		})
		p.CurrentReportID = id
	}
	return p
}

func samplePayload() *assemble.Payload {
	return payloadWith([]database.Measurement{
		{Name: "Hemoglobin", Value: 11.2, Unit: "g/dL", RefMin: fptr(12), RefMax: fptr(16), Risk: "low"},
		{Name: "WBC", Value: 7000, Unit: "cells/uL", RefMin: fptr(4000), RefMax: fptr(11000), Risk: "normal"},
	})
}

func TestGenerateWithoutProviderFallsBack(t *testing.T) {
	g := NewGenerator(nil, 0)
	out := g.Generate(context.Background(), samplePayload())

	if !out.Fallback {
		t.Error("expected fallback output without provider")
	}
	if out.Narrative == "" || out.Summary == "" || out.TrendText == "" || out.ClinicianSummary == "" {
		t.Errorf("fallback left fields empty: %+v", out)
	}
}

func TestGenerateParsesProviderResponse(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"narrative":         "Your hemoglobin is slightly below range.",
		"summary":           "Mildly low hemoglobin.",
		"trend_summary":     "Stable overall.",
		"clinician_summary": "Review low hemoglobin.",
		"notes_considered":  []string{"Impression: mild anemia"},
	})
	provider := &mockProvider{response: string(resp)}
	g := NewGenerator(provider, 512)

	out := g.Generate(context.Background(), samplePayload())

	if out.Fallback {
		t.Error("expected provider output, got fallback")
	}
	if out.Narrative != "Your hemoglobin is slightly below range." {
		t.Errorf("unexpected narrative: %q", out.Narrative)
	}
	if len(out.NotesConsidered) != 1 {
		t.Errorf("notes not carried: %+v", out.NotesConsidered)
	}
	if !strings.Contains(provider.lastPrompt, "Hemoglobin") {
		t.Error("context payload missing from prompt")
	}
	if !strings.Contains(provider.lastPrompt, "No diagnosis") {
		t.Error("safety instructions missing from prompt")
	}
}

func TestGenerateProviderErrorFallsBack(t *testing.T) {
	g := NewGenerator(&mockProvider{err: fmt.Errorf("connection refused")}, 0)
	out := g.Generate(context.Background(), samplePayload())
	if !out.Fallback {
		t.Error("expected fallback on provider error")
	}
	if out.Narrative == "" {
		t.Error("fallback narrative empty")
	}
}

func TestGenerateUnparseableResponseFallsBack(t *testing.T) {
	g := NewGenerator(&mockProvider{response: "I cannot answer in JSON today."}, 0)
	out := g.Generate(context.Background(), samplePayload())
	if !out.Fallback {
		t.Error("expected fallback on unparseable response")
	}
}

func TestGenerateCoercesAndBackfills(t *testing.T) {
	// narrative arrives as an array, summary as an object, trend empty.
	resp := `{"narrative": ["First paragraph.", "Second paragraph."],
		"summary": {"Overall": "fine"},
		"trend_summary": "",
		"clinician_summary": "Handoff."}`
	g := NewGenerator(&mockProvider{response: resp}, 0)

	out := g.Generate(context.Background(), samplePayload())

	if out.Narrative != "First paragraph.\nSecond paragraph." {
		t.Errorf("array not coerced: %q", out.Narrative)
	}
	if out.Summary != "Overall: fine" {
		t.Errorf("object not coerced: %q", out.Summary)
	}
	if out.TrendText == "" {
		t.Error("empty trend field should be backfilled from fallback")
	}
	if !strings.Contains(out.TrendText, trend.InsufficientHistory) {
		t.Errorf("backfilled trend unexpected: %q", out.TrendText)
	}
}

func TestFallbackCountsMarkers(t *testing.T) {
	out := Fallback(samplePayload())

	if !strings.Contains(out.Narrative, "1 of 2 markers in the normal range") {
		t.Errorf("marker counts missing: %q", out.Narrative)
	}
	if !strings.Contains(out.Narrative, "Low markers: Hemoglobin") {
		t.Errorf("low marker names missing: %q", out.Narrative)
	}
	if !strings.Contains(out.Narrative, "High markers: none") {
		t.Errorf("empty high list should render as none: %q", out.Narrative)
	}
	if !strings.Contains(out.Narrative, "not provided") {
		t.Errorf("empty profile fields should default: %q", out.Narrative)
	}
}

func TestFallbackZeroMeasurements(t *testing.T) {
	out := Fallback(payloadWith(nil))
	if !strings.Contains(out.Narrative, "No lab markers could be extracted") {
		t.Errorf("unexpected empty-extraction narrative: %q", out.Narrative)
	}
	if out.Summary == "" || out.TrendText == "" || out.ClinicianSummary == "" {
		t.Errorf("fallback fields empty: %+v", out)
	}
}

func TestFallbackEmptyPayload(t *testing.T) {
	out := Fallback(&assemble.Payload{})
	if out.Narrative == "" {
		t.Error("fallback should handle a payload with no reports")
	}
	if !strings.Contains(out.TrendText, trend.InsufficientHistory) {
		t.Errorf("expected insufficient history sentence: %q", out.TrendText)
	}
}

func TestFallbackTrendAcrossReports(t *testing.T) {
	previous := []database.Measurement{{Name: "Glucose", Value: 90, Risk: "normal"}}
	current := []database.Measurement{{Name: "Glucose", Value: 110, Risk: "high"}}
	out := Fallback(payloadWith(previous, current))

	if !strings.Contains(out.TrendText, "Glucose increased by 20.00") {
		t.Errorf("delta sentence missing: %q", out.TrendText)
	}
}

func TestFallbackEchoesProfileAndNotes(t *testing.T) {
	p := samplePayload()
	p.Profile.Symptoms = "fatigue"
	p.Profile.Medications = "levothyroxine"
	p.Reports[len(p.Reports)-1].Notes = []string{"Repeat CBC in 3 months"}

	out := Fallback(p)
	if !strings.Contains(out.Narrative, "fatigue") {
		t.Errorf("symptoms not echoed: %q", out.Narrative)
	}
	if !strings.Contains(out.Narrative, "Repeat CBC in 3 months") {
		t.Errorf("notes not appended: %q", out.Narrative)
	}
	if !strings.Contains(out.ClinicianSummary, "levothyroxine") {
		t.Errorf("medications missing from handoff: %q", out.ClinicianSummary)
	}
	if len(out.NotesConsidered) != 1 {
		t.Errorf("notes considered missing: %+v", out.NotesConsidered)
	}
}
