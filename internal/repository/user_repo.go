package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/you/academia-payments/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) ByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) HasUsedTrialGlobal(ctx context.Context, userID string) (bool, error) {
	u, err := r.ByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.TrialUsed, nil
}

func (r *UserRepo) HasUsedTrialAt(ctx context.Context, userID, academyID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.UserTrialAcademy{}).
		Where("user_id = ? AND academy_id = ?", userID, academyID).
		Count(&n).Error
	return n > 0, err
}

func (r *UserRepo) MarkTrialUsedGlobal(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Update("trial_used", true).Error
}

func (r *UserRepo) MarkTrialUsedAt(ctx context.Context, userID, academyID string) error {
	rec := domain.UserTrialAcademy{UserID: userID, AcademyID: academyID, UsedAt: time.Now().UTC()}
	// re-activation of the same trial is a no-op, not a constraint violation
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}
