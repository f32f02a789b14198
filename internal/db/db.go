package db

import (
	"context"
	stdlog "log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/gerrors"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
)

var seedRoles = []models.Role{
	{Name: consts.UserTypeCustomer, Description: "Customer role for making appointments"},
	{Name: consts.UserTypeVendor, Description: "Vendor role for managing salons"},
	{Name: consts.UserTypeAdmin, Description: "Administrator role"},
	{Name: consts.UserTypeFreelance, Description: "Freelance service provider"},
}

// Open connects to the sqlite database at dsn, migrates the schema and
// seeds the role table.
func Open(ctx context.Context, dsn string, logQueries bool) (*gorm.DB, error) {
	logLevel := logger.Error
	if logQueries {
		logLevel = logger.Info
	}
	gormLogger := logger.New(
		stdlog.New(os.Stdout, "[GORM] ", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, gerrors.Wrapf(err, "open database %s", dsn)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, gerrors.Wrap(err)
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	err := db.WithContext(ctx).AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Profile{},
		&models.Salon{},
		&models.Service{},
		&models.Staff{},
		&models.Appointment{},
		&models.Payment{},
		&models.Message{},
		&models.Review{},
		&models.AuditLog{},
	)
	if err != nil {
		return gerrors.Wrapf(err, "migrate schema")
	}
	return SeedRoles(ctx, db)
}

// SeedRoles inserts the built-in roles if they don't exist yet.
func SeedRoles(ctx context.Context, db *gorm.DB) error {
	for _, role := range seedRoles {
		var count int64
		if err := db.WithContext(ctx).Model(&models.Role{}).Where("name = ?", role.Name).Count(&count).Error; err != nil {
			return gerrors.Wrap(err)
		}
		if count > 0 {
			continue
		}
		if err := db.WithContext(ctx).Create(&role).Error; err != nil {
			return gerrors.Wrap(err)
		}
		log.Debug(ctx, "Seeded role", "name", role.Name)
	}
	return nil
}
