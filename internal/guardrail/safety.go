package guardrail

import (
	"regexp"
	"strings"
)

// Disclaimer appended to every generated field unless already present.
const Disclaimer = "This is educational support only, not a diagnosis or prescription."

const deferralSentence = "discuss treatment options with your clinician"

// diagnosisRewrites soften diagnostic phrasing into associative language.
var diagnosisRewrites = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\byou have ([a-z\s-]+)\b`), "This pattern may be associated with $1"},
	{regexp.MustCompile(`(?i)\bthis confirms ([a-z\s-]+)\b`), "This may suggest $1"},
	{regexp.MustCompile(`(?i)\bdiagnosed with ([a-z\s-]+)\b`), "shows findings related to $1"},
}

// alarmSofteners replace alarm words with calmer equivalents.
var alarmSofteners = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\bdangerous\b`), "concerning"},
	{regexp.MustCompile(`(?i)\bsevere\b`), "significant"},
	{regexp.MustCompile(`(?i)\bcritical\b`), "important"},
	{regexp.MustCompile(`(?i)\bemergency\b`), "prompt clinical review"},
	{regexp.MustCompile(`(?i)\bimmediately\b`), "soon"},
}

// prescriptionPatterns catch medication directives.
var prescriptionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(start|take|use)\s+[a-z0-9\s-]+\s+mg\b`),
	regexp.MustCompile(`(?i)\bprescribe\b`),
}

var disclaimerCheck = regexp.MustCompile(`(?i)educational support only`)

// LanguageStats counts the rewrites applied to one text field.
type LanguageStats struct {
	DiagnosisRewrites   int `json:"diagnosis_rewrites"`
	AlarmSoftened       int `json:"alarm_softened"`
	PrescriptionRemoved int `json:"prescription_removed"`
}

// RewriteLanguage sanitizes one generated text field: diagnostic phrasing
// becomes associative, alarm words soften, prescription directives defer
// to a clinician, and the disclaimer is appended when missing. Empty
// input stays empty.
func RewriteLanguage(text string) (string, LanguageStats) {
	var stats LanguageStats
	value := strings.TrimSpace(text)
	if value == "" {
		return "", stats
	}

	for _, r := range diagnosisRewrites {
		value = replaceCounting(r.pattern, value, r.replacement, &stats.DiagnosisRewrites)
	}
	for _, r := range alarmSofteners {
		value = replaceCounting(r.pattern, value, r.replacement, &stats.AlarmSoftened)
	}
	for _, p := range prescriptionPatterns {
		value = replaceCounting(p, value, deferralSentence, &stats.PrescriptionRemoved)
	}

	if !disclaimerCheck.MatchString(value) {
		value = strings.TrimRight(value, " \t\n") + " " + Disclaimer
	}

	return value, stats
}

func replaceCounting(pattern *regexp.Regexp, text, replacement string, counter *int) string {
	matches := pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	*counter += len(matches)
	return pattern.ReplaceAllString(text, replacement)
}
