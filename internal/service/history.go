package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lawrencezcl/AITurbo/internal/models"
	"github.com/lawrencezcl/AITurbo/internal/service/wechat"
)

// HistoryService owns the article_history and publish_history tables. Each
// write is a single durable row operation; the service never retries.
type HistoryService struct {
	db *gorm.DB
}

func NewHistoryService(db *gorm.DB) *HistoryService {
	return &HistoryService{db: db}
}

// newHistoryID builds a collision-resistant record id: a second-resolution
// time prefix plus a random suffix.
func newHistoryID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return now.Format("20060102150405") + suffix
}

func (h *HistoryService) RecordGenerated(article *models.ArticleHistory) (string, error) {
	if article.ID == "" {
		article.ID = newHistoryID(time.Now())
	}
	if article.GeneratedAt.IsZero() {
		article.GeneratedAt = time.Now()
	}
	article.Status = models.ArticleStatusGenerated

	if err := h.db.Create(article).Error; err != nil {
		return "", fmt.Errorf("failed to record generated article %q: %w", article.Title, err)
	}
	return article.ID, nil
}

// RecordSaved marks the matching records as saved drafts. Matching is by
// title or media id, and a record that already reached published is never
// touched, so a finished article cannot be regressed.
func (h *HistoryService) RecordSaved(matchKey, mediaID string, publishTime *time.Time) (bool, error) {
	now := time.Now()
	result := h.db.Model(&models.ArticleHistory{}).
		Where("(title = ? OR media_id = ?) AND status <> ?", matchKey, matchKey, models.ArticleStatusPublished).
		Updates(map[string]interface{}{
			"status":       models.ArticleStatusSaved,
			"media_id":     mediaID,
			"saved_at":     now,
			"publish_time": publishTime,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to record saved draft for %q: %w", matchKey, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// RecordPublished advances the matching non-published record to published and
// appends the publish_history projection. The non-published guard makes a
// repeated call with the same arguments a no-op, so a repair re-run after a
// partial failure inserts no duplicate projection.
func (h *HistoryService) RecordPublished(mediaID string, publishResult *wechat.PublishResult) (bool, error) {
	now := time.Now()
	result := h.db.Model(&models.ArticleHistory{}).
		Where("media_id = ? AND status <> ?", mediaID, models.ArticleStatusPublished).
		Updates(map[string]interface{}{
			"status":       models.ArticleStatusPublished,
			"publish_id":   publishResult.PublishID,
			"msg_data_id":  publishResult.MsgDataID,
			"published_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to record publish for media %s: %w", mediaID, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	var article models.ArticleHistory
	if err := h.db.Where("media_id = ?", mediaID).First(&article).Error; err != nil {
		return true, fmt.Errorf("failed to load published article for media %s: %w", mediaID, err)
	}

	record := models.PublishHistory{
		ID:            newHistoryID(now),
		Title:         article.Title,
		MediaID:       article.MediaID,
		PublishID:     article.PublishID,
		MsgDataID:     article.MsgDataID,
		PublishedAt:   now,
		Author:        article.Author,
		ContentLength: article.ContentLength,
		ImageCount:    article.ImageCount,
	}
	if err := h.db.Create(&record).Error; err != nil {
		return true, fmt.Errorf("failed to append publish history for media %s: %w", mediaID, err)
	}

	return true, nil
}

// RecordMassSent persists the mass-send sub-state on the row matched by
// publish id. It never changes the main status.
func (h *HistoryService) RecordMassSent(publishID, msgID string) (bool, error) {
	now := time.Now()
	result := h.db.Model(&models.ArticleHistory{}).
		Where("publish_id = ?", publishID).
		Updates(map[string]interface{}{
			"mass_sent":    true,
			"mass_msg_id":  msgID,
			"mass_sent_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to record mass-send for publish %s: %w", publishID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (h *HistoryService) ListGenerationHistory(limit int) ([]models.ArticleHistory, error) {
	var history []models.ArticleHistory
	err := h.db.Order("generated_at desc").Limit(limit).Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list generation history: %w", err)
	}
	return history, nil
}

func (h *HistoryService) ListPublishHistory(limit int) ([]models.PublishHistory, error) {
	var history []models.PublishHistory
	err := h.db.Order("published_at desc").Limit(limit).Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list publish history: %w", err)
	}
	return history, nil
}
