package domain

import "time"

const (
	TicketIssued   = "issued"
	TicketRedeemed = "redeemed"
)

// Ticket is the access credential for an approved event payment. Code is
// permanent once minted; the email is sent at most once.
type Ticket struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"uniqueIndex:idx_ticket_user_event"`
	EventID    string `gorm:"uniqueIndex:idx_ticket_user_event"`
	PaymentRef string `gorm:"index"`
	Code       string `gorm:"uniqueIndex"`
	Status     string `gorm:"index"` // issued|redeemed

	IssuedAt    time.Time
	RedeemedAt  *time.Time
	RedeemedBy  *string
	EmailSentAt *time.Time
	EmailID     string

	CreatedAt time.Time
	UpdatedAt time.Time
}
