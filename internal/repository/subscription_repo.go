package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/you/academia-payments/internal/domain"
)

type SubscriptionRepo struct{ db *gorm.DB }

func NewSubscriptionRepo(db *gorm.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

func (r *SubscriptionRepo) ByID(ctx context.Context, id string) (*domain.Subscription, error) {
	var s domain.Subscription
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// CurrentByUserAcademy returns the user's non-terminal subscription for an
// academy: trial or active for attendance checks, optionally paused too.
func (r *SubscriptionRepo) CurrentByUserAcademy(ctx context.Context, userID, academyID string, includePaused bool) (*domain.Subscription, error) {
	states := []string{domain.SubTrial, domain.SubActive}
	if includePaused {
		states = append(states, domain.SubPaused)
	}
	var s domain.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND academy_id = ? AND state IN ?", userID, academyID, states).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionRepo) Create(ctx context.Context, s *domain.Subscription) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SubscriptionRepo) Save(ctx context.Context, s *domain.Subscription) error {
	return r.db.WithContext(ctx).Save(s).Error
}
