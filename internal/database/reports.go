package database

import (
	"database/sql"
	"encoding/json"
)

// InsertReport inserts a new report record.
func (db *DB) InsertReport(id, owner, capturedDate string, rawText, sourceFile *string) error {
	_, err := db.conn.Exec(
		`INSERT INTO reports (id, owner, captured_date, raw_text, source_file)
		VALUES (?, ?, ?, ?, ?)`,
		id, owner, capturedDate, rawText, sourceFile,
	)
	return err
}

// GetReport returns a single report by ID, or nil if it does not exist.
func (db *DB) GetReport(id string) (*Report, error) {
	row := db.conn.QueryRow(
		`SELECT id, owner, captured_date, raw_text, notes, source_file, analysis_complete, created_at
		FROM reports WHERE id = ?`, id,
	)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetReportsForOwner returns all reports for an owner ordered by capture
// date then creation time, oldest first.
func (db *DB) GetReportsForOwner(owner string) ([]Report, error) {
	rows, err := db.conn.Query(
		`SELECT id, owner, captured_date, raw_text, notes, source_file, analysis_complete, created_at
		FROM reports WHERE owner = ? ORDER BY captured_date ASC, created_at ASC`, owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// GetAllReports returns every report ordered newest first.
func (db *DB) GetAllReports() ([]Report, error) {
	rows, err := db.conn.Query(
		`SELECT id, owner, captured_date, raw_text, notes, source_file, analysis_complete, created_at
		FROM reports ORDER BY captured_date DESC, created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// UpdateReportText replaces the stored raw text, used when extraction
// derives text from a file or records a diagnostic message.
func (db *DB) UpdateReportText(id, rawText string) error {
	_, err := db.conn.Exec("UPDATE reports SET raw_text = ? WHERE id = ?", rawText, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*Report, error) {
	var r Report
	var notesJSON *string
	var complete int
	err := row.Scan(&r.ID, &r.Owner, &r.CapturedDate, &r.RawText, &notesJSON,
		&r.SourceFile, &complete, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.AnalysisComplete = complete != 0
	if notesJSON != nil && *notesJSON != "" {
		json.Unmarshal([]byte(*notesJSON), &r.Notes)
	}
	return &r, nil
}
