package database

import (
	"github.com/opsarena/mailauth/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Open(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Surface unique-constraint races as gorm.ErrDuplicatedKey so the
		// repositories can map them to the business taxonomy.
		TranslateError: true,
	})
}
