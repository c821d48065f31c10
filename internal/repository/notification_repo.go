package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/you/academia-payments/internal/domain"
)

type NotificationRepo struct{ db *gorm.DB }

func NewNotificationRepo(db *gorm.DB) *NotificationRepo { return &NotificationRepo{db: db} }

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepo) ActiveTokens(ctx context.Context, userID string) ([]domain.PushToken, error) {
	var out []domain.PushToken
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Find(&out).Error
	return out, err
}

func (r *NotificationRepo) DeactivateToken(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.PushToken{}).
		Where("id = ?", id).
		Update("active", false).Error
}

func (r *NotificationRepo) TouchToken(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&domain.PushToken{}).
		Where("id = ?", id).
		Update("last_used", now).Error
}
