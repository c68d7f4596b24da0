package models

import (
	"time"
)

// ErrorLog 错误日志表
type ErrorLog struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Level      string     `gorm:"size:20;not null;index" json:"level"`   // ERROR, WARN, INFO
	Source     string     `gorm:"size:100;not null;index" json:"source"` // scheduler, gateway, history等
	JobID      string     `gorm:"size:100;index" json:"job_id"`          // 相关的定时任务ID
	MediaID    string     `gorm:"size:100;index" json:"media_id"`        // 相关的草稿media_id
	Title      string     `gorm:"size:500;not null" json:"title"`        // 错误标题
	Message    string     `gorm:"type:text;not null" json:"message"`     // 错误信息
	Context    string     `gorm:"type:jsonb" json:"context"`             // 额外上下文信息
	Resolved   bool       `gorm:"default:false;index" json:"resolved"`   // 是否已解决
	ResolvedAt *time.Time `json:"resolved_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MetricsSample 指标采样数据
type MetricsSample struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MetricName string    `gorm:"size:100;not null;index" json:"metric_name"` // 指标名称
	MetricType string    `gorm:"size:50;not null" json:"metric_type"`        // gauge, counter
	Value      float64   `gorm:"not null" json:"value"`                      // 指标值
	Tags       string    `gorm:"type:jsonb" json:"tags"`                     // 标签信息
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`            // 采样时间戳
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
