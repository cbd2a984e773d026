package database

import (
	"fmt"
	"os"
	"time"

	"github.com/costledger/costledger-api/internal/models"
	pkgLogger "github.com/costledger/costledger-api/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database
func Connect(databaseURL string) (*gorm.DB, error) {
	// Configure GORM logger
	logLevel := logger.Silent
	if os.Getenv("ENVIRONMENT") != "production" {
		logLevel = logger.Info
	}

	gormLogger := pkgLogger.NewGormLogger(
		logLevel,
		pkgLogger.DefaultSlowThreshold,
	)

	// Open database connection. Default transactions stay enabled: every
	// ledger mutation relies on the transactional span.
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         gormLogger,
		PrepareStmt:    true, // Cache prepared statements
		TranslateError: true, // Map driver errors to gorm errors
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the schema for every ledger table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ApprovedBudget{},
		&models.WorkOrder{},
		&models.PaymentCertificate{},
		&models.Payment{},
		&models.RetentionRelease{},
		&models.FinancialAggregate{},
		&models.DocumentSequence{},
		&models.MutationOperationLog{},
		&models.WorkOrderVersion{},
		&models.PaymentCertificateVersion{},
		&models.AuditLog{},
		&models.DomainEvent{},
	)
}
