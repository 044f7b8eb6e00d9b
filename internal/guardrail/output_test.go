package guardrail

import (
	"strings"
	"testing"

	"github.com/rohanverma/lablens/internal/database"
)

func TestRewriteLanguageDiagnosis(t *testing.T) {
	got, stats := RewriteLanguage("Based on these values you have diabetes.")
	if strings.Contains(strings.ToLower(got), "you have") {
		t.Errorf("diagnostic phrasing left in output: %q", got)
	}
	if !strings.Contains(got, "may be associated with") {
		t.Errorf("expected associative rewrite: %q", got)
	}
	if stats.DiagnosisRewrites != 1 {
		t.Errorf("expected 1 diagnosis rewrite, got %d", stats.DiagnosisRewrites)
	}
}

func TestRewriteLanguageAlarmWords(t *testing.T) {
	got, stats := RewriteLanguage("This is a dangerous and severe result. See a doctor immediately.")
	for _, word := range []string{"dangerous", "severe", "immediately"} {
		if strings.Contains(strings.ToLower(got), word) {
			t.Errorf("alarm word %q not softened: %q", word, got)
		}
	}
	if stats.AlarmSoftened != 3 {
		t.Errorf("expected 3 softened words, got %d", stats.AlarmSoftened)
	}
}

func TestRewriteLanguagePrescriptions(t *testing.T) {
	got, stats := RewriteLanguage("You should take metformin 500 mg daily.")
	if strings.Contains(strings.ToLower(got), "mg") {
		t.Errorf("prescription phrasing left in output: %q", got)
	}
	if !strings.Contains(got, "discuss treatment options with your clinician") {
		t.Errorf("expected deferral sentence: %q", got)
	}
	if stats.PrescriptionRemoved != 1 {
		t.Errorf("expected 1 prescription removal, got %d", stats.PrescriptionRemoved)
	}

	got, _ = RewriteLanguage("A doctor may prescribe something.")
	if strings.Contains(strings.ToLower(got), "prescribe something") {
		t.Errorf("prescribe not rewritten: %q", got)
	}
}

func TestRewriteLanguageDisclaimer(t *testing.T) {
	got, _ := RewriteLanguage("Everything looks fine.")
	if !strings.Contains(got, Disclaimer) {
		t.Errorf("disclaimer missing: %q", got)
	}

	// Not appended twice when already present.
	again, _ := RewriteLanguage(got)
	if strings.Count(again, "educational support only") != 1 {
		t.Errorf("disclaimer duplicated: %q", again)
	}

	empty, _ := RewriteLanguage("   ")
	if empty != "" {
		t.Errorf("empty input should stay empty, got %q", empty)
	}
}

func claimMeasurements() []database.Measurement {
	return []database.Measurement{
		{Name: "Hemoglobin", Value: 11.2, RefMin: fptr(12), RefMax: fptr(16)},
		{Name: "WBC", Value: 7000, RefMin: fptr(4000), RefMax: fptr(11000)},
	}
}

func TestValidateClaimsAllMatched(t *testing.T) {
	claims := ValidateClaims("Your hemoglobin of 11.2 is below the 12 to 16 range; WBC 7000 is fine.", claimMeasurements())
	if claims.HallucinationDetected {
		t.Errorf("unexpected hallucination flag: %+v", claims)
	}
	if claims.UnmatchedCount != 0 {
		t.Errorf("expected all numbers matched, got %+v", claims)
	}
}

func TestValidateClaimsWithinTolerance(t *testing.T) {
	// 6% of 7000 = 420, so 7300 is within tolerance; 0.2 floor covers 11.3.
	claims := ValidateClaims("Values near 7300 and 11.3 appear.", claimMeasurements())
	if claims.UnmatchedCount != 0 {
		t.Errorf("tolerance not applied: %+v", claims)
	}
}

func TestValidateClaimsHallucination(t *testing.T) {
	claims := ValidateClaims("Readings of 250, 380, 999 and 5.5 suggest trouble.", claimMeasurements())
	if !claims.HallucinationDetected {
		t.Errorf("expected hallucination flag: %+v", claims)
	}

	// Three unmatched numbers stay under the >=4 floor.
	claims = ValidateClaims("Readings of 250, 380 and 999.", claimMeasurements())
	if claims.HallucinationDetected {
		t.Errorf("flag requires at least 4 numbers: %+v", claims)
	}
}

func TestValidateClaimsIgnoresYears(t *testing.T) {
	claims := ValidateClaims("Compared to your 2025 report, WBC 7000 held steady.", claimMeasurements())
	if claims.NumberCount != 1 {
		t.Errorf("year should be excluded, got %+v", claims)
	}
}

func TestConfidenceLabel(t *testing.T) {
	tests := []struct {
		input    float64
		mismatch float64
		want     string
	}{
		{1.0, 0.0, "HIGH"},
		{0.9, 0.1, "HIGH"},
		{0.8, 0.3, "MEDIUM"},
		{0.5, 0.0, "MEDIUM"},
		{0.9, 0.6, "LOW"},
		{0.3, 0.0, "LOW"},
		{1.5, 0.0, "HIGH"}, // clamped
	}
	for _, tt := range tests {
		got := ConfidenceLabel(tt.input, ClaimStats{MismatchRatio: tt.mismatch})
		if got != tt.want {
			t.Errorf("ConfidenceLabel(%v, %v) = %q, want %q", tt.input, tt.mismatch, got, tt.want)
		}
	}
}

func TestCheckOutputAppendsCaution(t *testing.T) {
	fields := Fields{
		Narrative: "you have diabetes with a glucose of 250",
		Summary:   "Glucose 250, HbA1c 9.9, LDL 210, CRP 48 all elevated.",
		TrendText: "Glucose rose to 250.",
	}
	got, meta := CheckOutput(fields, claimMeasurements(), 0.9)

	if strings.Contains(strings.ToLower(got.Narrative), "you have diabetes") {
		t.Errorf("diagnosis language survived: %q", got.Narrative)
	}
	if !strings.Contains(got.Summary, "could not be verified") {
		t.Errorf("caution missing from summary: %q", got.Summary)
	}
	if !strings.Contains(got.TrendText, "could not be verified") {
		t.Errorf("caution missing from trend text: %q", got.TrendText)
	}
	if meta["confidence"] != "LOW" && meta["confidence"] != "MEDIUM" {
		t.Errorf("expected downgraded confidence, got %v", meta["confidence"])
	}

	claims, ok := meta["claim_validation"].(ClaimStats)
	if !ok || !claims.HallucinationDetected {
		t.Errorf("claim stats missing from meta: %+v", meta)
	}
}

func TestCheckOutputCleanText(t *testing.T) {
	fields := Fields{
		Narrative:        "Your hemoglobin of 11.2 sits just under the 12 to 16 range.",
		Summary:          "Hemoglobin slightly low.",
		TrendText:        "Only one report is available, so trend direction is limited.",
		ClinicianSummary: "Review hemoglobin 11.2 against the 12 to 16 reference.",
	}
	got, meta := CheckOutput(fields, claimMeasurements(), 1.0)

	if meta["confidence"] != "HIGH" {
		t.Errorf("expected HIGH confidence, got %v", meta["confidence"])
	}
	if strings.Contains(got.Summary, "could not be verified") {
		t.Errorf("unexpected caution on clean text: %q", got.Summary)
	}
	for _, text := range []string{got.Narrative, got.Summary, got.TrendText, got.ClinicianSummary} {
		if !strings.Contains(text, "educational support only") {
			t.Errorf("disclaimer missing: %q", text)
		}
	}
}
