package database

import "database/sql"

// UpsertProfile creates or replaces a user's profile.
func (db *DB) UpsertProfile(p *Profile) error {
	_, err := db.conn.Exec(
		`INSERT INTO profiles (user_id, age, gender, city, location_type, occupation,
			conditions, symptoms, medications, health_goal, language, smoking, alcohol,
			sleep_hours, activity_level, diet_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			age = excluded.age,
			gender = excluded.gender,
			city = excluded.city,
			location_type = excluded.location_type,
			occupation = excluded.occupation,
			conditions = excluded.conditions,
			symptoms = excluded.symptoms,
			medications = excluded.medications,
			health_goal = excluded.health_goal,
			language = excluded.language,
			smoking = excluded.smoking,
			alcohol = excluded.alcohol,
			sleep_hours = excluded.sleep_hours,
			activity_level = excluded.activity_level,
			diet_type = excluded.diet_type,
			updated_at = datetime('now')`,
		p.UserID, p.Age, p.Gender, p.City, p.LocationType, p.Occupation,
		p.Conditions, p.Symptoms, p.Medications, p.HealthGoal, p.Language,
		p.Smoking, p.Alcohol, p.SleepHours, p.ActivityLevel, p.DietType,
	)
	return err
}

// GetProfile returns a user's profile, or nil if none is stored.
func (db *DB) GetProfile(userID string) (*Profile, error) {
	row := db.conn.QueryRow(
		`SELECT user_id, age, gender, city, location_type, occupation,
			conditions, symptoms, medications, health_goal, language, smoking, alcohol,
			sleep_hours, activity_level, diet_type
		FROM profiles WHERE user_id = ?`, userID,
	)
	var p Profile
	err := row.Scan(&p.UserID, &p.Age, &p.Gender, &p.City, &p.LocationType,
		&p.Occupation, &p.Conditions, &p.Symptoms, &p.Medications, &p.HealthGoal,
		&p.Language, &p.Smoking, &p.Alcohol, &p.SleepHours, &p.ActivityLevel, &p.DietType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
