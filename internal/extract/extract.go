// Package extract turns raw report text or vision-service output into
// measurements and clinician notes. Extraction never fails: the worst
// case is an empty list plus a diagnostic message.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rohanverma/lablens/internal/database"
)

// maxNotes caps how many free-text note lines are kept per report.
const maxNotes = 6

// Diagnostic messages stored as report text when nothing parses.
const (
	DiagUnparseableText = "Provided text could not be parsed. Use one line per parameter like: Hemoglobin 11.2 g/dL 12-16"
	DiagNoInput         = "No parseable text found from upload. Try a clearer image or paste report text."
)

var (
	lineRe = regexp.MustCompile(`(?i)^(?P<name>[A-Za-z0-9\-\(\)/\s]+?)\s+(?P<value>[-+]?\d[\d,]*\.?\d*)\s*(?P<unit>[A-Za-z%/0-9\^\.]*)\s*(?:(?P<refmin>[-+]?\d[\d,]*\.?\d*)\s*(?:-|to)\s*(?P<refmax>[-+]?\d[\d,]*\.?\d*))?$`)
	numRe  = regexp.MustCompile(`[-+]?\d[\d,]*\.?\d*`)
)

// noteKeywords mark a line as clinician commentary rather than data.
var noteKeywords = []string{
	"advice", "advise", "recommend", "follow-up", "follow up",
	"impression", "comment", "suggest", "consult", "review", "repeat",
}

// Result is the outcome of one extraction pass.
type Result struct {
	Measurements []database.Measurement
	Notes        []string
	// Diagnostic explains an empty result; empty when extraction worked.
	Diagnostic string
}

// FromText parses raw report text into measurements and notes. A strict
// line parser runs first; if it finds nothing, a permissive pass takes
// the first number on each line as the value.
func FromText(text string) Result {
	lines := strings.Split(text, "\n")
	tabular := make([]bool, len(lines))

	var measurements []database.Measurement
	for i, line := range lines {
		cleaned := strings.Join(strings.Fields(line), " ")
		if cleaned == "" {
			continue
		}
		if m, ok := parseStrict(cleaned); ok {
			measurements = append(measurements, m)
			tabular[i] = true
		}
	}

	if len(measurements) == 0 {
		for i, line := range lines {
			cleaned := strings.Join(strings.Fields(line), " ")
			if cleaned == "" {
				continue
			}
			// Clinician commentary often carries numbers; leave it for
			// note collection rather than mangling it into a measurement.
			if hasNoteKeyword(cleaned) {
				continue
			}
			if m, ok := parsePermissive(cleaned); ok {
				measurements = append(measurements, m)
				tabular[i] = true
			}
		}
	}

	notes := collectNotes(lines, tabular)

	r := Result{Measurements: measurements, Notes: notes}
	if len(measurements) == 0 {
		r.Diagnostic = DiagUnparseableText
	}
	return r
}

// parseStrict expects "<name> <value> <unit>? <min>-<max>?".
func parseStrict(line string) (database.Measurement, bool) {
	match := lineRe.FindStringSubmatch(line)
	if match == nil {
		return database.Measurement{}, false
	}

	groups := map[string]string{}
	for i, name := range lineRe.SubexpNames() {
		if name != "" {
			groups[name] = match[i]
		}
	}

	value, ok := ParseFloat(groups["value"])
	if !ok {
		return database.Measurement{}, false
	}

	m := database.Measurement{
		Name:  strings.TrimSpace(groups["name"]),
		Value: value,
		Unit:  strings.TrimSpace(groups["unit"]),
	}
	if lo, ok := ParseFloat(groups["refmin"]); ok {
		m.RefMin = &lo
	}
	if hi, ok := ParseFloat(groups["refmax"]); ok {
		m.RefMax = &hi
	}
	return m, true
}

// parsePermissive takes the first number as the value, the next two as
// the reference range, and the text before the first number as the name.
func parsePermissive(line string) (database.Measurement, bool) {
	nums := numberTokens(line)
	if len(nums) == 0 {
		return database.Measurement{}, false
	}
	value, ok := ParseFloat(nums[0])
	if !ok {
		return database.Measurement{}, false
	}

	name := strings.TrimFunc(strings.SplitN(line, nums[0], 2)[0], func(r rune) bool {
		return r == ' ' || r == ':' || r == '-'
	})
	if name == "" {
		return database.Measurement{}, false
	}

	m := database.Measurement{Name: name, Value: value}
	if len(nums) > 2 {
		if lo, ok := ParseFloat(nums[1]); ok {
			m.RefMin = &lo
		}
		if hi, ok := ParseFloat(nums[2]); ok {
			m.RefMax = &hi
		}
	}
	return m, true
}

// collectNotes gathers clinician commentary from non-tabular lines:
// anything carrying a note keyword or at least six words.
func collectNotes(lines []string, tabular []bool) []string {
	var notes []string
	for i, line := range lines {
		if tabular[i] {
			continue
		}
		cleaned := strings.Join(strings.Fields(line), " ")
		if cleaned == "" {
			continue
		}
		if !isNoteLine(cleaned) {
			continue
		}
		notes = append(notes, cleaned)
		if len(notes) >= maxNotes {
			break
		}
	}
	return notes
}

func isNoteLine(line string) bool {
	return hasNoteKeyword(line) || len(strings.Fields(line)) >= 6
}

func hasNoteKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range noteKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// numberTokens finds numeric tokens in a line. A sign glued to the tail
// of a preceding number is a range separator ("4000-11000"), not a sign.
func numberTokens(line string) []string {
	var tokens []string
	for _, loc := range numRe.FindAllStringIndex(line, -1) {
		token := line[loc[0]:loc[1]]
		if (token[0] == '-' || token[0] == '+') && loc[0] > 0 && isDigit(line[loc[0]-1]) {
			token = token[1:]
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// ParseFloat parses a numeric token, tolerating thousands separators.
// Returns (0, false) for anything non-numeric.
func ParseFloat(token string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(token, ",", ""))
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// toFloat coerces a decoded JSON value (number or numeric string) to a
// float. Used for vision payloads where value types are unreliable.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		return ParseFloat(val)
	default:
		return 0, false
	}
}
