package config

import "gorm.io/gorm"

// CreateAwaitingAssessmentPartialIndex allows any number of completed or
// recalled assessments per activity and group, but only one awaiting one.
func CreateAwaitingAssessmentPartialIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_assessments_awaiting_group
		ON assessments (selected_activity_id, assessor_group_id)
		WHERE status = 'AWAITING_ASSESSMENT';
	`).Error
}

// SeedLodgementCounter makes sure the single lodgement counter row exists.
func SeedLodgementCounter(db *gorm.DB) error {
	return db.Exec(`
		INSERT INTO lodgement_counters (id, value) VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`).Error
}
