package domain

import "time"

// Event is a social outing. Price is kept as entered by the organizer
// ("25000", "$25.000"); ParsePrice recovers the numeric amount.
type Event struct {
	ID      string `gorm:"primaryKey"`
	Name    string
	Price   string
	OwnerID string `gorm:"index"`

	CreatedAt time.Time
}

type Academy struct {
	ID      string `gorm:"primaryKey"`
	Name    string
	Price   string
	OwnerID string `gorm:"index"`

	CreatedAt time.Time
}

// Group is a class group within an academy.
type Group struct {
	ID        string `gorm:"primaryKey"`
	AcademyID string `gorm:"index"`
	Name      string
	TeacherID string

	CreatedAt time.Time
}
