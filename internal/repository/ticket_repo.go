package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/you/academia-payments/internal/domain"
)

type TicketRepo struct{ db *gorm.DB }

func NewTicketRepo(db *gorm.DB) *TicketRepo { return &TicketRepo{db: db} }

func (r *TicketRepo) ByUserEvent(ctx context.Context, userID, eventID string) (*domain.Ticket, error) {
	var t domain.Ticket
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepo) ByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := r.db.WithContext(ctx).First(&t, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(t).Error
}

// MarkEmailSent records the send exactly once; a ticket whose email_sent_at is
// already set is left alone.
func (r *TicketRepo) MarkEmailSent(ctx context.Context, id, emailID string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Ticket{}).
		Where("id = ? AND email_sent_at IS NULL", id).
		Updates(map[string]any{"email_sent_at": now, "email_id": emailID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Redeem flips issued→redeemed once. Zero rows affected means the ticket was
// already redeemed (or never issued).
func (r *TicketRepo) Redeem(ctx context.Context, code, staffID string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Ticket{}).
		Where("code = ? AND status = ?", code, domain.TicketIssued).
		Updates(map[string]any{"status": domain.TicketRedeemed, "redeemed_at": now, "redeemed_by": staffID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
