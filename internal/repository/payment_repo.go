package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/you/academia-payments/internal/domain"
)

var ErrNotFound = gorm.ErrRecordNotFound

type PaymentRepo struct{ db *gorm.DB }

func NewPaymentRepo(db *gorm.DB) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) ByID(ctx context.Context, id string) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepo) ByGatewayID(ctx context.Context, gatewayID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).First(&p, "gateway_id = ?", gatewayID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// PendingByExternalReference matches the reference string minted at checkout
// and echoed back verbatim by the gateway.
func (r *PaymentRepo) PendingByExternalReference(ctx context.Context, ref string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).
		Where("external_reference = ? AND status = ?", ref, domain.PaymentPending).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PendingByEventUser resolves the `<eventID>-<userID>` reference form: the
// payment the checkout flow created for that roster entry, still pending.
func (r *PaymentRepo) PendingByEventUser(ctx context.Context, eventID, userID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ? AND status = ?", eventID, userID, domain.PaymentPending).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.PaymentPending
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepo) Save(ctx context.Context, p *domain.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// LinkGatewayID binds the gateway correlation id once. A payment that is
// already linked keeps its original id.
func (r *PaymentRepo) LinkGatewayID(ctx context.Context, p *domain.Payment, gatewayID string) error {
	if p.GatewayID != nil {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND gateway_id IS NULL", p.ID).
		Update("gateway_id", gatewayID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		p.GatewayID = &gatewayID
	}
	return nil
}

// MarkRevenueTracked flips the flag false→true exactly once. The WHERE clause
// is the guard: a concurrent duplicate sees zero rows affected.
func (r *PaymentRepo) MarkRevenueTracked(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND revenue_tracked = ?", id, false).
		Updates(map[string]any{"revenue_tracked": true, "revenue_tracked_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
