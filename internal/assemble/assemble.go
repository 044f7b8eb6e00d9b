// Package assemble builds the structured payload that generation
// consumes: report history, the current extraction, and profile facts.
// The payload carries no derived prose.
package assemble

import (
	"fmt"

	"github.com/rohanverma/lablens/internal/database"
)

// Lifestyle is the nested lifestyle block of the profile context.
type Lifestyle struct {
	SleepHours    *float64 `json:"sleep_hours"`
	ActivityLevel string   `json:"activity_level"`
	DietType      string   `json:"diet_type"`
}

// ProfileContext is the read-only snapshot of user attributes included
// in the generation payload.
type ProfileContext struct {
	Age          *int      `json:"age"`
	Gender       string    `json:"gender"`
	City         string    `json:"city"`
	LocationType string    `json:"location_type"`
	Occupation   string    `json:"occupation"`
	Conditions   string    `json:"past_medical_conditions"`
	Symptoms     string    `json:"current_symptoms"`
	Medications  string    `json:"medications"`
	HealthGoal   string    `json:"health_goal"`
	Language     string    `json:"language_preference"`
	Smoking      string    `json:"smoking_status"`
	Alcohol      string    `json:"alcohol_consumption"`
	Lifestyle    Lifestyle `json:"lifestyle"`
}

// ReportContext is one report in the ordered history.
type ReportContext struct {
	ReportID       string                 `json:"report_id"`
	Date           string                 `json:"date"`
	ParameterCount int                    `json:"parameter_count"`
	Measurements   []database.Measurement `json:"parameters"`
	Notes          []string               `json:"notes,omitempty"`
}

// Payload is the complete input to explanation generation.
type Payload struct {
	CurrentReportID string         `json:"current_report_id"`
	Profile         ProfileContext `json:"user_context"`
	Reports         []ReportContext `json:"reports"`
}

// Store is the subset of the database the assembler reads.
type Store interface {
	GetReportsForOwner(owner string) ([]database.Report, error)
	GetMeasurementsForReport(reportID string) ([]database.Measurement, error)
	GetProfile(userID string) (*database.Profile, error)
}

// Build assembles the payload for a report. The current report's
// measurements and notes come from the in-flight extraction rather than
// the store, since persistence happens atomically at the end of a pass.
func Build(db Store, report *database.Report, current []database.Measurement, notes []string) (*Payload, error) {
	reports, err := db.GetReportsForOwner(report.Owner)
	if err != nil {
		return nil, fmt.Errorf("loading report history: %w", err)
	}

	payload := &Payload{CurrentReportID: report.ID}

	seen := false
	for _, r := range reports {
		rc := ReportContext{ReportID: r.ID, Date: r.CapturedDate}
		if r.ID == report.ID {
			rc.Measurements = current
			rc.Notes = notes
			seen = true
		} else {
			measurements, err := db.GetMeasurementsForReport(r.ID)
			if err != nil {
				return nil, fmt.Errorf("loading measurements for %s: %w", r.ID, err)
			}
			rc.Measurements = measurements
			rc.Notes = r.Notes
		}
		rc.ParameterCount = len(rc.Measurements)
		payload.Reports = append(payload.Reports, rc)
	}
	if !seen {
		payload.Reports = append(payload.Reports, ReportContext{
			ReportID:       report.ID,
			Date:           report.CapturedDate,
			ParameterCount: len(current),
			Measurements:   current,
			Notes:          notes,
		})
	}

	profile, err := db.GetProfile(report.Owner)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if profile != nil {
		payload.Profile = ProfileContext{
			Age:          profile.Age,
			Gender:       profile.Gender,
			City:         profile.City,
			LocationType: profile.LocationType,
			Occupation:   profile.Occupation,
			Conditions:   profile.Conditions,
			Symptoms:     profile.Symptoms,
			Medications:  profile.Medications,
			HealthGoal:   profile.HealthGoal,
			Language:     profile.Language,
			Smoking:      profile.Smoking,
			Alcohol:      profile.Alcohol,
			Lifestyle: Lifestyle{
				SleepHours:    profile.SleepHours,
				ActivityLevel: profile.ActivityLevel,
				DietType:      profile.DietType,
			},
		}
	}

	return payload, nil
}

// Current returns the measurement set of the target report.
func (p *Payload) Current() []database.Measurement {
	for _, r := range p.Reports {
		if r.ReportID == p.CurrentReportID {
			return r.Measurements
		}
	}
	return nil
}

// CurrentNotes returns the notes of the target report.
func (p *Payload) CurrentNotes() []string {
	for _, r := range p.Reports {
		if r.ReportID == p.CurrentReportID {
			return r.Notes
		}
	}
	return nil
}

// History returns the measurement sets in capture order up to and
// including the target report, so trend comparison pairs the target
// with the report immediately preceding it by capture date.
func (p *Payload) History() [][]database.Measurement {
	var history [][]database.Measurement
	for _, r := range p.Reports {
		history = append(history, r.Measurements)
		if r.ReportID == p.CurrentReportID {
			break
		}
	}
	return history
}
