package explain

import (
	"fmt"
	"strings"

	"github.com/rohanverma/lablens/internal/assemble"
	"github.com/rohanverma/lablens/internal/classify"
	"github.com/rohanverma/lablens/internal/database"
	"github.com/rohanverma/lablens/internal/trend"
)

// Fallback builds a deterministic analysis purely from the context
// payload. It handles zero measurements, single reports, and empty
// profiles without error.
func Fallback(payload *assemble.Payload) Output {
	current := payload.Current()
	notes := payload.CurrentNotes()

	var high, low []string
	normalCount := 0
	for _, m := range current {
		switch m.Risk {
		case classify.RiskHigh:
			high = append(high, m.Name)
		case classify.RiskLow:
			low = append(low, m.Name)
		case classify.RiskNormal:
			normalCount++
		}
	}

	narrative := buildNarrative(current, normalCount, high, low, payload.Profile, notes)
	summary := buildSummary(current, normalCount, high, low)
	trendText := trend.Snapshot(payload.History()) +
		" For richer narrative insight, configure a generative text provider."
	clinician := buildClinicianSummary(high, low, payload.Profile)

	out := Output{
		Narrative:        narrative,
		Summary:          summary,
		TrendText:        trendText,
		ClinicianSummary: clinician,
		NotesConsidered:  notes,
		Fallback:         true,
	}
	out.Raw = map[string]any{
		"narrative":         out.Narrative,
		"summary":           out.Summary,
		"trend_summary":     out.TrendText,
		"clinician_summary": out.ClinicianSummary,
		"notes_considered":  out.NotesConsidered,
		"generator":         "fallback",
	}
	return out
}

func buildNarrative(current []database.Measurement, normalCount int, high, low []string, profile assemble.ProfileContext, notes []string) string {
	var b strings.Builder

	if len(current) == 0 {
		b.WriteString("No lab markers could be extracted from the latest upload. " +
			"Please upload a clearer photo or paste report text in structured lines.")
	} else {
		fmt.Fprintf(&b, "Your latest report has %d of %d markers in the normal range. ",
			normalCount, len(current))
		fmt.Fprintf(&b, "High markers: %s. ", nameList(high))
		fmt.Fprintf(&b, "Low markers: %s.", nameList(low))
	}

	b.WriteString("\n\nContext considered: ")
	fmt.Fprintf(&b, "symptoms: %s; ", orNotProvided(profile.Symptoms))
	fmt.Fprintf(&b, "known conditions: %s; ", orNotProvided(profile.Conditions))
	fmt.Fprintf(&b, "medications: %s; ", orNotProvided(profile.Medications))
	fmt.Fprintf(&b, "activity level: %s; ", orNotProvided(profile.Lifestyle.ActivityLevel))
	fmt.Fprintf(&b, "diet: %s; ", orNotProvided(profile.Lifestyle.DietType))
	fmt.Fprintf(&b, "health goal: %s.", orNotProvided(profile.HealthGoal))

	if len(notes) > 0 {
		b.WriteString("\n\nNotes from the report: ")
		b.WriteString(strings.Join(notes, " "))
	}

	b.WriteString("\n\nThis is an educational summary and should be validated with your doctor.")
	return b.String()
}

func buildSummary(current []database.Measurement, normalCount int, high, low []string) string {
	if len(current) == 0 {
		return "No lab markers could be extracted from this upload."
	}
	return fmt.Sprintf("%d of %d markers normal. High: %s. Low: %s.",
		normalCount, len(current), nameList(high), nameList(low))
}

func buildClinicianSummary(high, low []string, profile assemble.ProfileContext) string {
	var b strings.Builder
	b.WriteString("Patient has longitudinal report history with profile context. ")
	fmt.Fprintf(&b, "Flagged high: %s. Flagged low: %s. ", nameList(high), nameList(low))
	fmt.Fprintf(&b, "Reported symptoms: %s; medications: %s. ",
		orNotProvided(profile.Symptoms), orNotProvided(profile.Medications))
	b.WriteString("Please review flagged markers against symptoms and history.")
	return b.String()
}

func nameList(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not provided"
	}
	return s
}
