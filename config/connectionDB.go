package config

import (
	"fmt"

	"authgate/internal/entity"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func ConnectionDb(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DatabaseURL,
		PreferSimpleProtocol: true, // Disable prepared statements completely
	}), &gorm.Config{
		PrepareStmt:    false,
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the tables the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&entity.User{}, &entity.OTPDevice{}, &entity.SecurityLog{})
}
