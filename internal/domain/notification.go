package domain

import "time"

type Notification struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"index"`
	FromUserID string
	EventID    *string
	AcademyID  *string
	Type       string
	Message    string
	ActionURL  string
	Read       bool `gorm:"index"`

	CreatedAt time.Time
}
