package repository

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/you/academia-payments/internal/domain"
)

func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Payment{},
		&domain.Subscription{},
		&domain.Attendance{},
		&domain.Ticket{},
		&domain.EventMember{},
		&domain.Event{},
		&domain.Academy{},
		&domain.Group{},
		&domain.User{},
		&domain.UserTrialAcademy{},
		&domain.PushToken{},
		&domain.Notification{},
	)
}
