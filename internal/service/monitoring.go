package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lawrencezcl/AITurbo/internal/models"
)

type MonitoringService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMonitoringService(db *gorm.DB, logger *zap.Logger) *MonitoringService {
	return &MonitoringService{
		db:     db,
		logger: logger,
	}
}

// RecordError 记录错误日志
func (m *MonitoringService) RecordError(level, source, title, message string, options ...ErrorLogOption) error {
	errorLog := &models.ErrorLog{
		Level:   level,
		Source:  source,
		Title:   title,
		Message: message,
	}

	// 应用选项
	for _, option := range options {
		option(errorLog)
	}

	return m.db.Create(errorLog).Error
}

// ErrorLogOption 错误日志选项
type ErrorLogOption func(*models.ErrorLog)

// WithJob 设置任务ID
func WithJob(jobID string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.JobID = jobID
	}
}

// WithMedia 设置media_id
func WithMedia(mediaID string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.MediaID = mediaID
	}
}

// WithContext 设置上下文信息
func WithContext(context map[string]interface{}) ErrorLogOption {
	return func(e *models.ErrorLog) {
		if contextBytes, err := json.Marshal(context); err == nil {
			e.Context = string(contextBytes)
		}
	}
}

// RecordMetric 记录指标数据
func (m *MonitoringService) RecordMetric(name, metricType string, value float64, tags map[string]interface{}) error {
	var tagsJSON string
	if tags != nil {
		if tagsBytes, err := json.Marshal(tags); err == nil {
			tagsJSON = string(tagsBytes)
		}
	}

	metric := &models.MetricsSample{
		MetricName: name,
		MetricType: metricType,
		Value:      value,
		Tags:       tagsJSON,
		Timestamp:  time.Now(),
	}

	return m.db.Create(metric).Error
}

// GetRecentErrors 获取最近的错误日志
func (m *MonitoringService) GetRecentErrors(limit int) ([]models.ErrorLog, error) {
	var errors []models.ErrorLog
	err := m.db.Order("created_at desc").
		Limit(limit).
		Find(&errors).Error
	return errors, err
}

// CleanupOldData 清理旧数据
func (m *MonitoringService) CleanupOldData(daysToKeep int) error {
	cutoffDate := time.Now().AddDate(0, 0, -daysToKeep)

	// 清理旧的指标数据
	if err := m.db.Where("timestamp < ?", cutoffDate).Delete(&models.MetricsSample{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup metrics samples: %w", err)
	}

	// 清理已解决的旧错误日志
	if err := m.db.Where("created_at < ? AND resolved = ?", cutoffDate, true).Delete(&models.ErrorLog{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup resolved errors: %w", err)
	}

	return nil
}

// MonitoringSweeper periodically prunes old monitoring data.
type MonitoringSweeper struct {
	monitoringService *MonitoringService
	logger            *zap.Logger
	retentionDays     int
	ticker            *time.Ticker
	done              chan bool
}

func NewMonitoringSweeper(monitoringService *MonitoringService, logger *zap.Logger, interval time.Duration, retentionDays int) *MonitoringSweeper {
	return &MonitoringSweeper{
		monitoringService: monitoringService,
		logger:            logger,
		retentionDays:     retentionDays,
		ticker:            time.NewTicker(interval),
		done:              make(chan bool),
	}
}

// Start begins the periodic cleanup process
func (s *MonitoringSweeper) Start(ctx context.Context) {
	go func() {
		s.logger.Info("Starting monitoring sweeper")
		for {
			select {
			case <-s.done:
				s.logger.Info("Monitoring sweeper stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Monitoring sweeper stopped due to context cancellation")
				return
			case <-s.ticker.C:
				if err := s.monitoringService.CleanupOldData(s.retentionDays); err != nil {
					s.logger.Error("Failed to cleanup old monitoring data", zap.Error(err))
				}
			}
		}
	}()
}

// Stop stops the sweeper
func (s *MonitoringSweeper) Stop() {
	s.ticker.Stop()
	close(s.done)
}
