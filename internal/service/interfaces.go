package service

import (
	"context"
	"time"

	"github.com/lawrencezcl/AITurbo/internal/models"
	"github.com/lawrencezcl/AITurbo/internal/service/wechat"
)

// JobStore is the durable table of scheduled jobs and the sole source of
// truth for recovery. Every write is immediately durable.
type JobStore interface {
	// UpsertJob inserts or replaces the row keyed by job.ID. On conflict the
	// publish time, mass-send flag and status are overwritten.
	UpsertJob(job *models.ScheduledJob) error
	// TransitionJob moves a job to a terminal status, rejecting transitions
	// out of a terminal state. Returns ErrJobNotFound for unknown ids.
	TransitionJob(id string, to models.JobStatus) error
	// GetJob returns the row keyed by id, or ErrJobNotFound.
	GetJob(id string) (*models.ScheduledJob, error)
	// ListPendingFutureJobs returns pending jobs whose publish time is after
	// now, ordered by publish time ascending. Used exclusively by recovery.
	ListPendingFutureJobs(now time.Time) ([]models.ScheduledJob, error)
	// CountPendingPastJobs counts pending jobs whose publish time already
	// elapsed. Recovery reports these without touching them.
	CountPendingPastJobs(now time.Time) (int64, error)
	// ListJobs returns the most recently updated jobs regardless of status.
	ListJobs(limit int) ([]models.ScheduledJob, error)
}

// HistoryLedger keeps the article lifecycle records and the append-only
// publish history. It performs no retries; persistence errors surface to the
// caller.
type HistoryLedger interface {
	// RecordGenerated creates an ArticleHistory row in generated state and
	// returns its id.
	RecordGenerated(article *models.ArticleHistory) (string, error)
	// RecordSaved transitions matching non-published rows to saved, setting
	// media_id, saved_at and publish_time. matchKey may be a title or a media
	// id. Reports whether any row matched.
	RecordSaved(matchKey, mediaID string, publishTime *time.Time) (bool, error)
	// RecordPublished transitions the matching non-published row to published
	// and inserts the PublishHistory projection exactly once. Reports whether
	// a row matched.
	RecordPublished(mediaID string, result *wechat.PublishResult) (bool, error)
	// RecordMassSent persists the mass-send sub-state on the published row
	// matched by publish id.
	RecordMassSent(publishID, msgID string) (bool, error)
	ListGenerationHistory(limit int) ([]models.ArticleHistory, error)
	ListPublishHistory(limit int) ([]models.PublishHistory, error)
}

// Gateway is the boundary to the external publish platform.
type Gateway interface {
	ObtainCredential(ctx context.Context, appID, appSecret string) (*wechat.Credential, error)
	PublishDraft(ctx context.Context, cred *wechat.Credential, mediaID string) (*wechat.PublishResult, error)
	MassSend(ctx context.Context, cred *wechat.Credential, publishID string) (*wechat.MassSendResult, error)
}

// Recorder is the slice of the monitoring service the orchestrator needs.
type Recorder interface {
	RecordError(level, source, title, message string, options ...ErrorLogOption) error
	RecordMetric(name, metricType string, value float64, tags map[string]interface{}) error
}
