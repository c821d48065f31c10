package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/you/academia-payments/internal/domain"
)

type AttendanceRepo struct{ db *gorm.DB }

func NewAttendanceRepo(db *gorm.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

func (r *AttendanceRepo) ByUserGroupDay(ctx context.Context, userID, groupID string, day time.Time) (*domain.Attendance, error) {
	var a domain.Attendance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ? AND day = ?", userID, groupID, domain.NormalizeDay(day)).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecordOnce creates the attendance and, for a trial visit, increments the
// subscription's class counter in the same transaction, so a crash cannot
// leave the counter and the row out of step. If the row already exists the
// existing record is returned with created=false and the counter untouched.
func (r *AttendanceRepo) RecordOnce(ctx context.Context, a *domain.Attendance) (created bool, out *domain.Attendance, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Attendance
		findErr := tx.Where("user_id = ? AND group_id = ? AND day = ?", a.UserID, a.GroupID, a.Day).
			First(&existing).Error
		if findErr == nil {
			out = &existing
			return nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		if a.TrialVisit {
			res := tx.Model(&domain.Subscription{}).
				Where("id = ?", a.SubscriptionID).
				Update("trial_classes_attended", gorm.Expr("trial_classes_attended + 1"))
			if res.Error != nil {
				return res.Error
			}
		}
		created = true
		out = a
		return nil
	})
	return created, out, err
}
