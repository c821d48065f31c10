package domain

import "time"

// EventMember is a social-event roster entry. It carries no status of its
// own: approval state is always the linked Payment's status, read via a join.
type EventMember struct {
	ID        string `gorm:"primaryKey"`
	EventID   string `gorm:"uniqueIndex:idx_member_event_user"`
	UserID    string `gorm:"uniqueIndex:idx_member_event_user"`
	PaymentID string `gorm:"index"`
	JoinedAt  time.Time

	CreatedAt time.Time
}
