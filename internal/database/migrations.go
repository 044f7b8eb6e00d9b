package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    captured_date TEXT NOT NULL,
    raw_text TEXT,
    notes TEXT,
    source_file TEXT,
    analysis_complete INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS measurements (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    value REAL NOT NULL,
    unit TEXT DEFAULT '',
    ref_min REAL,
    ref_max REAL,
    risk TEXT NOT NULL DEFAULT 'unknown'
);

CREATE TABLE IF NOT EXISTS analyses (
    report_id TEXT PRIMARY KEY REFERENCES reports(id) ON DELETE CASCADE,
    narrative TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    trend_text TEXT NOT NULL DEFAULT '',
    clinician_summary TEXT NOT NULL DEFAULT '',
    raw_payload TEXT,
    guardrail_meta TEXT,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    age INTEGER,
    gender TEXT DEFAULT '',
    city TEXT DEFAULT '',
    location_type TEXT DEFAULT '',
    occupation TEXT DEFAULT '',
    conditions TEXT DEFAULT '',
    symptoms TEXT DEFAULT '',
    medications TEXT DEFAULT '',
    health_goal TEXT DEFAULT '',
    language TEXT DEFAULT '',
    smoking TEXT DEFAULT '',
    alcohol TEXT DEFAULT '',
    sleep_hours REAL,
    activity_level TEXT DEFAULT '',
    diet_type TEXT DEFAULT '',
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reports_owner ON reports(owner);
CREATE INDEX IF NOT EXISTS idx_reports_owner_date ON reports(owner, captured_date);
CREATE INDEX IF NOT EXISTS idx_measurements_report ON measurements(report_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
