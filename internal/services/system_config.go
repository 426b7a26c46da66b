package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/charmverse/governance/internal/models"
	"gorm.io/gorm"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(ctx context.Context, key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.WithContext(ctx).Where("config_key = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetInt parses an int setting, falling back to defaultValue
func (s *SystemConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	n, err := strconv.Atoi(s.GetWithDefault(ctx, key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func (s *SystemConfigService) Set(ctx context.Context, key, value string) error {
	var cfg models.SystemConfig
	err := s.db.WithContext(ctx).Where("config_key = ?", key).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.SystemConfig{Key: key, Value: value}
		return s.db.WithContext(ctx).Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&cfg).Update("value", value).Error
}
