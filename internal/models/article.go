package models

import (
	"time"
)

// ArticleStatus tracks an article through its lifecycle. Transitions are
// monotonic: generated -> saved -> published. A published record is final.
type ArticleStatus string

const (
	ArticleStatusGenerated ArticleStatus = "generated"
	ArticleStatusSaved     ArticleStatus = "saved"
	ArticleStatusPublished ArticleStatus = "published"
)

// CanTransition reports whether an article in status s may advance to the
// target status. Regressions and skips past published are rejected.
func (s ArticleStatus) CanTransition(to ArticleStatus) bool {
	switch s {
	case ArticleStatusGenerated:
		return to == ArticleStatusSaved || to == ArticleStatusPublished
	case ArticleStatusSaved:
		return to == ArticleStatusPublished
	}
	return false
}

// ArticleHistory records one generated article and follows it through draft
// save and publish. media_id is set on save; publish_id/msg_data_id on publish.
// The mass-send columns are sub-state independent of the main status.
type ArticleHistory struct {
	ID               string        `gorm:"primaryKey;size:50" json:"id"`
	Title            string        `gorm:"not null;size:255;index" json:"title"`
	ContentLength    int           `gorm:"default:0" json:"content_length"`
	ImageCount       int           `gorm:"default:0" json:"image_count"`
	GeneratedAt      time.Time     `json:"generated_at"`
	Author           string        `gorm:"size:100" json:"author"`
	Digest           string        `gorm:"type:text" json:"digest"`
	ContentSourceURL string        `gorm:"size:500" json:"content_source_url"`
	Status           ArticleStatus `gorm:"size:20;default:'generated';index" json:"status"`
	MediaID          string        `gorm:"size:100;index" json:"media_id"`
	PublishID        string        `gorm:"size:100" json:"publish_id"`
	MsgDataID        string        `gorm:"size:100" json:"msg_data_id"`
	PublishTime      *time.Time    `json:"publish_time"`
	PublishedAt      *time.Time    `json:"published_at"`
	SavedAt          *time.Time    `json:"saved_at"`
	MassSent         bool          `gorm:"default:false" json:"mass_sent"`
	MassMsgID        string        `gorm:"size:100" json:"mass_msg_id"`
	MassSentAt       *time.Time    `json:"mass_sent_at"`
	EnableMassSend   bool          `gorm:"default:false" json:"enable_mass_send"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ArticleHistory) TableName() string {
	return "article_history"
}

// PublishHistory is the append-only projection written exactly once per
// successful publish, copying the article fields at the moment of publish.
// Rows are never updated after insertion.
type PublishHistory struct {
	ID            string    `gorm:"primaryKey;size:50" json:"id"`
	Title         string    `gorm:"not null;size:255" json:"title"`
	MediaID       string    `gorm:"size:100;index" json:"media_id"`
	PublishID     string    `gorm:"size:100" json:"publish_id"`
	MsgDataID     string    `gorm:"size:100" json:"msg_data_id"`
	PublishedAt   time.Time `json:"published_at"`
	Author        string    `gorm:"size:100" json:"author"`
	ContentLength int       `gorm:"default:0" json:"content_length"`
	ImageCount    int       `gorm:"default:0" json:"image_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PublishHistory) TableName() string {
	return "publish_history"
}
