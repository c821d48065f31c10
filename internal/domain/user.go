package domain

import "time"

type User struct {
	ID    string `gorm:"primaryKey"`
	Email string `gorm:"uniqueIndex"`
	Name  string

	// TrialUsed is the global one-shot flag; per-academy consumption lives in
	// UserTrialAcademy. Which one applies depends on the configured scope.
	TrialUsed bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserTrialAcademy struct {
	UserID    string `gorm:"primaryKey"`
	AcademyID string `gorm:"primaryKey"`
	UsedAt    time.Time
}

type PushToken struct {
	ID       string `gorm:"primaryKey"`
	UserID   string `gorm:"index"`
	Token    string `gorm:"uniqueIndex"`
	Active   bool   `gorm:"index"`
	LastUsed *time.Time

	CreatedAt time.Time
}
