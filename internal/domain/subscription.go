package domain

import "time"

const (
	SubTrial     = "trial"
	SubActive    = "active"
	SubPaused    = "paused"
	SubCancelled = "cancelled"
)

type Trial struct {
	InTrial         bool
	Start           time.Time
	End             *time.Time
	ClassesAttended int
	Used            bool
}

type Billing struct {
	Amount    float64
	Currency  string
	Frequency int
	Unit      string // months|days
}

// Subscription is a user's relationship to an academy. At most one
// non-terminal (trial/active/paused) row exists per (user, academy).
type Subscription struct {
	ID        string  `gorm:"primaryKey"`
	UserID    string  `gorm:"index:idx_sub_user_academy"`
	AcademyID string  `gorm:"index:idx_sub_user_academy"`
	GroupID   *string `gorm:"index"`
	State     string  `gorm:"index"` // trial|active|paused|cancelled

	Trial   Trial   `gorm:"embedded;embeddedPrefix:trial_"`
	Billing Billing `gorm:"embedded;embeddedPrefix:billing_"`

	ActivatedAt  *time.Time
	PausedAt     *time.Time
	CancelledAt  *time.Time
	CancelReason string
	LastPaidAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrialExpired implements the hybrid rule: a trial ends when the window has
// passed or the free-class allowance is spent, whichever comes first.
func (s *Subscription) TrialExpired(now time.Time, classLimit int) bool {
	if !s.Trial.InTrial {
		return true
	}
	if s.Trial.ClassesAttended >= classLimit {
		return true
	}
	if s.Trial.End != nil && now.After(*s.Trial.End) {
		return true
	}
	return false
}

func (s *Subscription) CanAttend(now time.Time, classLimit int) bool {
	switch s.State {
	case SubActive:
		return true
	case SubTrial:
		return !s.TrialExpired(now, classLimit)
	default:
		return false
	}
}

func (s *Subscription) Terminal() bool { return s.State == SubCancelled }
