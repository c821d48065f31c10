package domain

import "time"

// Attendance is one class visit. Day is normalized to midnight UTC so the
// unique index makes a second registration on the same calendar day a no-op.
type Attendance struct {
	ID             string    `gorm:"primaryKey"`
	UserID         string    `gorm:"uniqueIndex:idx_attendance_user_group_day"`
	GroupID        string    `gorm:"uniqueIndex:idx_attendance_user_group_day"`
	Day            time.Time `gorm:"uniqueIndex:idx_attendance_user_group_day"`
	AcademyID      string    `gorm:"index"`
	SubscriptionID string    `gorm:"index"`
	Attended       bool
	TrialVisit     bool
	RegisteredBy   string

	CreatedAt time.Time
}

// NormalizeDay truncates t to the start of its UTC day.
func NormalizeDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
