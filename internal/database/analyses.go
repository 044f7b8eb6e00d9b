package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// GetAnalysis returns the analysis for a report, or nil if none exists.
func (db *DB) GetAnalysis(reportID string) (*Analysis, error) {
	row := db.conn.QueryRow(
		`SELECT report_id, narrative, summary, trend_text, clinician_summary,
		raw_payload, guardrail_meta, generated_at
		FROM analyses WHERE report_id = ?`, reportID,
	)
	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ReplaceResults atomically replaces a report's measurements, upserts its
// analysis, optionally rewrites its raw text and notes, and marks the
// report analyzed. A concurrent reader sees either the previous complete
// result set or the new one, never a mix.
func (db *DB) ReplaceResults(reportID string, measurements []Measurement, analysis *Analysis, rawText *string, notes []string) error {
	rawPayload, err := marshalBlob(analysis.RawPayload)
	if err != nil {
		return fmt.Errorf("encoding raw payload: %w", err)
	}
	guardrailMeta, err := marshalBlob(analysis.GuardrailMeta)
	if err != nil {
		return fmt.Errorf("encoding guardrail meta: %w", err)
	}
	notesJSON, err := marshalBlob(notes)
	if err != nil {
		return fmt.Errorf("encoding notes: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM measurements WHERE report_id = ?", reportID); err != nil {
		return fmt.Errorf("clearing measurements: %w", err)
	}
	for _, m := range measurements {
		_, err := tx.Exec(
			`INSERT INTO measurements (report_id, name, value, unit, ref_min, ref_max, risk)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			reportID, m.Name, m.Value, m.Unit, m.RefMin, m.RefMax, m.Risk,
		)
		if err != nil {
			return fmt.Errorf("inserting measurement %q: %w", m.Name, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO analyses (report_id, narrative, summary, trend_text, clinician_summary, raw_payload, guardrail_meta, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(report_id) DO UPDATE SET
			narrative = excluded.narrative,
			summary = excluded.summary,
			trend_text = excluded.trend_text,
			clinician_summary = excluded.clinician_summary,
			raw_payload = excluded.raw_payload,
			guardrail_meta = excluded.guardrail_meta,
			generated_at = excluded.generated_at`,
		reportID, analysis.Narrative, analysis.Summary, analysis.TrendText,
		analysis.ClinicianSummary, rawPayload, guardrailMeta,
	)
	if err != nil {
		return fmt.Errorf("upserting analysis: %w", err)
	}

	query := "UPDATE reports SET analysis_complete = 1, notes = ?"
	args := []any{notesJSON}
	if rawText != nil {
		query += ", raw_text = ?"
		args = append(args, *rawText)
	}
	query += " WHERE id = ?"
	args = append(args, reportID)

	res, err := tx.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("marking report analyzed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("report %s no longer exists", reportID)
	}

	return tx.Commit()
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	var a Analysis
	var rawPayload, guardrailMeta *string
	err := row.Scan(&a.ReportID, &a.Narrative, &a.Summary, &a.TrendText,
		&a.ClinicianSummary, &rawPayload, &guardrailMeta, &a.GeneratedAt)
	if err != nil {
		return nil, err
	}
	if rawPayload != nil && *rawPayload != "" {
		json.Unmarshal([]byte(*rawPayload), &a.RawPayload)
	}
	if guardrailMeta != nil && *guardrailMeta != "" {
		json.Unmarshal([]byte(*guardrailMeta), &a.GuardrailMeta)
	}
	return &a, nil
}

func marshalBlob(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}
