package database

import (
	"github.com/opsarena/mailauth/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.VerificationToken{},
	)
}
