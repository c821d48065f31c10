package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/you/academia-payments/internal/domain"
)

type RosterRepo struct{ db *gorm.DB }

func NewRosterRepo(db *gorm.DB) *RosterRepo { return &RosterRepo{db: db} }

func (r *RosterRepo) ByEventUser(ctx context.Context, eventID, userID string) (*domain.EventMember, error) {
	var m domain.EventMember
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *RosterRepo) Create(ctx context.Context, m *domain.EventMember) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(m).Error
}
