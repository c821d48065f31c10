package domain

import "time"

const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
)

const (
	PayMethodTransfer = "transferencia"
	PayMethodGateway  = "gateway"
)

// Payment is one payment attempt. GatewayID is the gateway's correlation id;
// it stays nil until the first notification (or checkout callback) links it.
// Exactly one of EventID/AcademyID is set.
type Payment struct {
	ID                string  `gorm:"primaryKey"`
	GatewayID         *string `gorm:"uniqueIndex"`
	ExternalReference string  `gorm:"index"`
	UserID            string  `gorm:"index"`
	EventID           *string `gorm:"index"`
	AcademyID         *string `gorm:"index"`
	Amount            float64
	Currency          string
	Status            string `gorm:"index"` // pending|approved|rejected
	StatusDetail      string
	PaymentMethod     string
	Kind              string // transferencia|gateway
	ReceiptURL        string // bank-transfer receipt, if any

	RevenueTracked     bool
	RevenueTrackedAt   *time.Time
	WebhookProcessedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Payment) Approved() bool { return p.Status == PaymentApproved }

// ForEvent reports whether this payment belongs to a social-event roster entry
// (as opposed to an academy subscription).
func (p *Payment) ForEvent() bool { return p.EventID != nil }

func (p *Payment) ForAcademy() bool { return p.AcademyID != nil }
