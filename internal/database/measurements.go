package database

// GetMeasurementsForReport returns a report's measurements in insertion order.
func (db *DB) GetMeasurementsForReport(reportID string) ([]Measurement, error) {
	rows, err := db.conn.Query(
		`SELECT id, report_id, name, value, unit, ref_min, ref_max, risk
		FROM measurements WHERE report_id = ? ORDER BY id ASC`, reportID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var measurements []Measurement
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(&m.ID, &m.ReportID, &m.Name, &m.Value, &m.Unit,
			&m.RefMin, &m.RefMax, &m.Risk); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}
