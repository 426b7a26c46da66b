package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/logger"
	"gorm.io/gorm"
)

type SystemLogService struct {
	db      *gorm.DB
	configs *SystemConfigService
}

func NewSystemLogService(db *gorm.DB, configs *SystemConfigService) *SystemLogService {
	return &SystemLogService{db: db, configs: configs}
}

// AuditEntry is one audited request
type AuditEntry struct {
	Level     string
	Module    string
	Action    string
	Message   string
	UserID    string
	SpaceID   string
	IP        string
	UserAgent string
	Extra     interface{}
}

// Record stores an audit entry; failures are only logged.
func (s *SystemLogService) Record(ctx context.Context, e *AuditEntry) {
	var extra string
	if e.Extra != nil {
		if b, err := json.Marshal(e.Extra); err == nil {
			extra = string(b)
		}
	}

	level := e.Level
	if level == "" {
		level = "info"
	}
	row := &models.SystemLog{
		Level:     level,
		Module:    e.Module,
		Action:    e.Action,
		Message:   e.Message,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Extra:     extra,
		CreatedAt: time.Now(),
	}
	if e.UserID != "" {
		row.UserID = &e.UserID
	}
	if e.SpaceID != "" {
		row.SpaceID = &e.SpaceID
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		logger.Warnf("[SystemLog] Failed to write log: %v", err)
	}
}

type SystemLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	SpaceID   string `form:"space_id"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(ctx context.Context, req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.SystemLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.SpaceID != "" {
		query = query.Where("space_id = ?", req.SpaceID)
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

func (s *SystemLogService) GetModules(ctx context.Context) ([]string, error) {
	var modules []string
	if err := s.db.WithContext(ctx).Model(&models.SystemLog{}).Distinct("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// CleanupOldLogs deletes logs older than the retention window and returns
// the number of deleted records
func (s *SystemLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// GetRetentionDays reads the retention window from system config
func (s *SystemLogService) GetRetentionDays(ctx context.Context) int {
	return s.configs.GetInt(ctx, models.ConfigLogRetentionDays, 30)
}

func (s *SystemLogService) SetRetentionDays(ctx context.Context, days int) error {
	return s.configs.Set(ctx, models.ConfigLogRetentionDays, strconv.Itoa(days))
}

// RunCleanup applies the configured retention window
func (s *SystemLogService) RunCleanup(ctx context.Context) error {
	days := s.GetRetentionDays(ctx)
	if days <= 0 {
		logger.Infof("[SystemLog] Log cleanup disabled (retention_days <= 0)")
		return nil
	}

	deleted, err := s.CleanupOldLogs(ctx, days)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Infof("[SystemLog] Cleaned up %d logs older than %d days", deleted, days)
	}
	return nil
}
