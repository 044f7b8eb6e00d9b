package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func fptr(f float64) *float64 { return &f }

func TestInsertAndGetReport(t *testing.T) {
	db := openTestDB(t)

	if err := db.InsertReport("01ABC", "priya", "2026-08-01", ptr("Hemoglobin 11.2 g/dL 12-16"), nil); err != nil {
		t.Fatalf("InsertReport: %v", err)
	}

	r, err := db.GetReport("01ABC")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if r == nil {
		t.Fatal("expected report, got nil")
	}
	if r.Owner != "priya" || r.CapturedDate != "2026-08-01" {
		t.Errorf("unexpected report fields: %+v", r)
	}
	if r.AnalysisComplete {
		t.Error("new report should not be marked analyzed")
	}
}

func TestGetReportMissing(t *testing.T) {
	db := openTestDB(t)
	r, err := db.GetReport("missing")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if r != nil {
		t.Errorf("expected nil for missing report, got %+v", r)
	}
}

func TestGetReportsForOwnerOrdering(t *testing.T) {
	db := openTestDB(t)
	db.InsertReport("r2", "sam", "2026-06-15", nil, nil)
	db.InsertReport("r1", "sam", "2026-01-10", nil, nil)
	db.InsertReport("r3", "other", "2026-03-01", nil, nil)

	reports, err := db.GetReportsForOwner("sam")
	if err != nil {
		t.Fatalf("GetReportsForOwner: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].ID != "r1" || reports[1].ID != "r2" {
		t.Errorf("expected oldest-first ordering, got %s, %s", reports[0].ID, reports[1].ID)
	}
}

func TestReplaceResults(t *testing.T) {
	db := openTestDB(t)
	db.InsertReport("r1", "sam", "2026-08-01", nil, nil)

	measurements := []Measurement{
		{Name: "Hemoglobin", Value: 11.2, Unit: "g/dL", RefMin: fptr(12), RefMax: fptr(16), Risk: "low"},
		{Name: "WBC", Value: 7000, Unit: "cells/uL", RefMin: fptr(4000), RefMax: fptr(11000), Risk: "normal"},
	}
	analysis := &Analysis{
		ReportID:      "r1",
		Narrative:     "All good overall.",
		Summary:       "Short summary.",
		GuardrailMeta: map[string]any{"confidence": "HIGH"},
	}

	if err := db.ReplaceResults("r1", measurements, analysis, nil, []string{"Repeat CBC in 3 months"}); err != nil {
		t.Fatalf("ReplaceResults: %v", err)
	}

	got, err := db.GetMeasurementsForReport("r1")
	if err != nil {
		t.Fatalf("GetMeasurementsForReport: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 measurements, got %d", len(got))
	}
	if got[0].Name != "Hemoglobin" || got[0].Risk != "low" {
		t.Errorf("unexpected first measurement: %+v", got[0])
	}
	if got[1].RefMax == nil || *got[1].RefMax != 11000 {
		t.Errorf("reference bound not round-tripped: %+v", got[1])
	}

	a, err := db.GetAnalysis("r1")
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if a == nil || a.Narrative != "All good overall." {
		t.Errorf("unexpected analysis: %+v", a)
	}
	if a.GuardrailMeta["confidence"] != "HIGH" {
		t.Errorf("guardrail meta not round-tripped: %+v", a.GuardrailMeta)
	}

	r, _ := db.GetReport("r1")
	if !r.AnalysisComplete {
		t.Error("report should be marked analyzed after ReplaceResults")
	}
	if len(r.Notes) != 1 || r.Notes[0] != "Repeat CBC in 3 months" {
		t.Errorf("notes not stored: %+v", r.Notes)
	}
}

func TestReplaceResultsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	db.InsertReport("r1", "sam", "2026-08-01", nil, nil)

	measurements := []Measurement{{Name: "Glucose", Value: 95, Risk: "unknown"}}
	analysis := &Analysis{ReportID: "r1", Narrative: "n"}

	for i := 0; i < 3; i++ {
		if err := db.ReplaceResults("r1", measurements, analysis, nil, nil); err != nil {
			t.Fatalf("ReplaceResults pass %d: %v", i, err)
		}
	}

	got, _ := db.GetMeasurementsForReport("r1")
	if len(got) != 1 {
		t.Errorf("expected 1 measurement after re-processing, got %d", len(got))
	}
}

func TestReplaceResultsMissingReport(t *testing.T) {
	db := openTestDB(t)
	err := db.ReplaceResults("ghost", nil, &Analysis{Narrative: "n"}, nil, nil)
	if err == nil {
		t.Fatal("expected error for vanished report")
	}

	// The failed pass must not leave a dangling analysis behind.
	a, _ := db.GetAnalysis("ghost")
	if a != nil {
		t.Errorf("expected no analysis for missing report, got %+v", a)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	db := openTestDB(t)

	age := 34
	sleep := 6.5
	p := &Profile{
		UserID:        "sam",
		Age:           &age,
		Gender:        "female",
		Symptoms:      "fatigue",
		SleepHours:    &sleep,
		ActivityLevel: "moderate",
	}
	if err := db.UpsertProfile(p); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}

	got, err := db.GetProfile("sam")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got == nil || got.Age == nil || *got.Age != 34 || got.Symptoms != "fatigue" {
		t.Errorf("profile not round-tripped: %+v", got)
	}

	p.Symptoms = "fatigue, headaches"
	if err := db.UpsertProfile(p); err != nil {
		t.Fatalf("UpsertProfile update: %v", err)
	}
	got, _ = db.GetProfile("sam")
	if got.Symptoms != "fatigue, headaches" {
		t.Errorf("profile update not applied: %q", got.Symptoms)
	}

	missing, err := db.GetProfile("nobody")
	if err != nil || missing != nil {
		t.Errorf("expected nil profile for unknown user, got %+v (%v)", missing, err)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	db.InsertReport("r1", "sam", "2026-08-01", nil, nil)
	db.InsertReport("r2", "priya", "2026-08-02", nil, nil)
	db.ReplaceResults("r1", []Measurement{{Name: "Glucose", Value: 95, Risk: "unknown"}},
		&Analysis{ReportID: "r1", Narrative: "n"}, nil, nil)

	s, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.TotalReports != 2 || s.AnalyzedReports != 1 || s.Measurements != 1 || s.Owners != 2 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	db.Close()
}
