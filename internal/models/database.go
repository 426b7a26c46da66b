package models

import (
	"fmt"

	"github.com/charmverse/governance/internal/config"
	"github.com/charmverse/governance/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the database selected by cfg.Driver.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	logLevel := gormlogger.Warn
	if logger.IsDebug() {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Space{},
		&SpaceRole{},
		&Role{},
		&SpaceRoleToRole{},
		&Page{},
		&Proposal{},
		&ProposalAuthor{},
		&ProposalEvaluation{},
		&ProposalEvaluationReviewer{},
		&Vote{},
		&VoteOption{},
		&UserVote{},
		&Bounty{},
		&BountyPermission{},
		&WebhookSubscription{},
		&WebhookDelivery{},
		&SystemLog{},
		&SystemConfig{},
		&SchedulerLock{},
		&RefreshToken{},
	)
}

// SeedDefaultData creates default system configs if they do not exist
func SeedDefaultData(db *gorm.DB, logRetentionDays int) error {
	defaultConfigs := []SystemConfig{
		{Key: ConfigLogRetentionDays, Value: fmt.Sprintf("%d", logRetentionDays), Type: "int", Group: "system", Label: "System Log Retention Days"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		if err := db.Model(&SystemConfig{}).Where("config_key = ?", cfg.Key).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
