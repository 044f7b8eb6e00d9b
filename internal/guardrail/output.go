package guardrail

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rohanverma/lablens/internal/database"
)

// Claim validation heuristics. Preserved exactly: they set where the
// HIGH/MEDIUM/LOW confidence boundaries fall.
const (
	claimTolerancePct   = 0.06
	claimToleranceFloor = 0.2
	mismatchThreshold   = 0.45
	minNumbersForFlag   = 4

	yearMin = 1900
	yearMax = 2200

	highThreshold   = 0.75
	mediumThreshold = 0.45
	maxPenalty      = 0.75
)

// cautionSentence is appended to summary and trend text when generated
// numbers cannot be traced back to extracted values.
const cautionSentence = " Some generated claims could not be verified against extracted lab values, so this summary should be reviewed carefully with a clinician."

// Fields are the generated text fields the output guardrail operates on.
type Fields struct {
	Narrative        string
	Summary          string
	TrendText        string
	ClinicianSummary string
}

// ClaimStats summarizes numeric claim validation for one pass.
type ClaimStats struct {
	HallucinationDetected bool    `json:"hallucination_detected"`
	NumberCount           int     `json:"number_count"`
	UnmatchedCount        int     `json:"unmatched_count"`
	MismatchRatio         float64 `json:"mismatch_ratio"`
}

var numberToken = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// CheckOutput sanitizes generated text and audits its numeric claims.
// It returns the rewritten fields plus metadata holding every decision:
// per-field language rewrite counts, claim statistics, the confidence
// label, and the input confidence that fed into it.
func CheckOutput(fields Fields, measurements []database.Measurement, inputConfidence float64) (Fields, map[string]any) {
	language := map[string]LanguageStats{}

	fields.Narrative, language["narrative"] = RewriteLanguage(fields.Narrative)
	fields.Summary, language["summary"] = RewriteLanguage(fields.Summary)
	fields.TrendText, language["trend_text"] = RewriteLanguage(fields.TrendText)
	fields.ClinicianSummary, language["clinician_summary"] = RewriteLanguage(fields.ClinicianSummary)

	combined := strings.Join([]string{
		fields.Narrative, fields.Summary, fields.TrendText, fields.ClinicianSummary,
	}, " ")
	claims := ValidateClaims(combined, measurements)

	if claims.HallucinationDetected {
		fields.Summary = strings.TrimSpace(fields.Summary) + cautionSentence
		fields.TrendText = strings.TrimSpace(fields.TrendText) + cautionSentence
	}

	label := ConfidenceLabel(inputConfidence, claims)

	meta := map[string]any{
		"language_validation": language,
		"claim_validation":    claims,
		"confidence":          label,
		"input_confidence":    round2(clamp01(inputConfidence)),
	}
	return fields, meta
}

// ValidateClaims extracts numeric tokens from generated text and checks
// each against the values and reference bounds actually extracted.
// Plausible year values are ignored. Hallucination is flagged when at
// least four numbers appear and more than 45% of them are unmatched.
func ValidateClaims(text string, measurements []database.Measurement) ClaimStats {
	found := extractNumbers(text)
	if len(found) == 0 {
		return ClaimStats{}
	}

	allowed := allowedValues(measurements)
	unmatched := 0
	for _, v := range found {
		if !matchesAllowed(v, allowed) {
			unmatched++
		}
	}

	ratio := round2(float64(unmatched) / float64(len(found)))
	return ClaimStats{
		HallucinationDetected: ratio > mismatchThreshold && len(found) >= minNumbersForFlag,
		NumberCount:           len(found),
		UnmatchedCount:        unmatched,
		MismatchRatio:         ratio,
	}
}

// ConfidenceLabel maps the input confidence and claim mismatch ratio to
// the final HIGH/MEDIUM/LOW label.
func ConfidenceLabel(inputConfidence float64, claims ClaimStats) string {
	score := clamp01(inputConfidence) * (1.0 - math.Min(maxPenalty, claims.MismatchRatio))
	switch {
	case score >= highThreshold:
		return "HIGH"
	case score >= mediumThreshold:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func extractNumbers(text string) []float64 {
	var values []float64
	for _, token := range numberToken.FindAllString(text, -1) {
		number, err := strconv.ParseFloat(token, 64)
		if err != nil {
			continue
		}
		// Ignore likely year stamps and list numbering noise.
		if number >= yearMin && number <= yearMax {
			continue
		}
		values = append(values, number)
	}
	return values
}

func allowedValues(measurements []database.Measurement) []float64 {
	var allowed []float64
	for _, m := range measurements {
		allowed = append(allowed, m.Value)
		if m.RefMin != nil {
			allowed = append(allowed, *m.RefMin)
		}
		if m.RefMax != nil {
			allowed = append(allowed, *m.RefMax)
		}
	}
	return allowed
}

func matchesAllowed(value float64, allowed []float64) bool {
	for _, candidate := range allowed {
		tolerance := math.Max(claimToleranceFloor, math.Abs(candidate)*claimTolerancePct)
		if math.Abs(value-candidate) <= tolerance {
			return true
		}
	}
	return false
}
