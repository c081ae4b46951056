package database

import (
	"fmt"

	"expensecontrol/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the GORM pool and migrates the schema.
func NewConnection(dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		log.WithError(err).Warn("failed to auto-migrate models")
	}

	return db, nil
}

// Migrate creates or updates the tables in parent-to-child order.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Account{},
		&model.Category{},
		&model.Request{},
		&model.RequestLine{},
		&model.HistoryEntry{},
		&model.Attachment{},
	)
}
