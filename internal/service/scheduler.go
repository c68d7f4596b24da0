package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lawrencezcl/AITurbo/internal/config"
	"github.com/lawrencezcl/AITurbo/internal/models"
	"github.com/lawrencezcl/AITurbo/internal/service/wechat"
)

// publishTimeLayout is the fixed schedule-time format accepted from callers;
// RFC 3339 is the fallback.
const publishTimeLayout = "2006-01-02 15:04:05"

var (
	// ErrMissingMediaID rejects a schedule request without a draft reference.
	ErrMissingMediaID = errors.New("media id is required")
	// ErrInvalidPublishTime rejects an unparseable or non-future publish time.
	ErrInvalidPublishTime = errors.New("invalid publish time")
)

// PublishScheduler orchestrates deferred publishes: it persists jobs, arms
// in-memory timers from them, re-arms pending jobs at startup, and drives the
// publish / mass-send workflow when a timer fires.
//
// Jobs are keyed deterministically from the media id, so scheduling twice for
// the same draft upserts the row and replaces the timer instead of creating a
// parallel one. Fire callbacks for distinct media ids run concurrently; their
// state updates touch disjoint rows and need no cross-job lock.
type PublishScheduler struct {
	wechatCfg  *config.WeChatConfig
	logger     *zap.Logger
	jobs       JobStore
	history    HistoryLedger
	gateway    Gateway
	timer      *TimerService
	monitoring Recorder
}

func NewPublishScheduler(
	wechatCfg *config.WeChatConfig,
	logger *zap.Logger,
	jobs JobStore,
	history HistoryLedger,
	gateway Gateway,
	timer *TimerService,
	monitoring Recorder,
) *PublishScheduler {
	return &PublishScheduler{
		wechatCfg:  wechatCfg,
		logger:     logger,
		jobs:       jobs,
		history:    history,
		gateway:    gateway,
		timer:      timer,
		monitoring: monitoring,
	}
}

// Start recovers pending jobs from the store and re-arms their timers. It
// must complete before the service accepts new schedule requests.
func (s *PublishScheduler) Start(ctx context.Context) error {
	return s.recoverJobs(time.Now())
}

// Stop disarms all pending timers. In-flight fire callbacks keep running.
func (s *PublishScheduler) Stop() {
	s.timer.Stop()
	s.logger.Info("Publish scheduler stopped")
}

// ParsePublishTime accepts the fixed "2006-01-02 15:04:05" pattern first and
// falls back to RFC 3339.
func ParsePublishTime(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(publishTimeLayout, value, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPublishTime, value)
	}
	return t, nil
}

// SchedulePublish parses the publish time and defers to SchedulePublishAt.
func (s *PublishScheduler) SchedulePublish(mediaID, publishTime string, enableMassSend bool) (string, error) {
	t, err := ParsePublishTime(publishTime)
	if err != nil {
		return "", err
	}
	return s.SchedulePublishAt(mediaID, t, enableMassSend)
}

// SchedulePublishAt records a pending job, propagates the chosen publish time
// onto the article record, and arms the fire timer. A repeat call for the
// same media id overwrites the job row and replaces the timer (last write
// wins).
func (s *PublishScheduler) SchedulePublishAt(mediaID string, publishTime time.Time, enableMassSend bool) (string, error) {
	if mediaID == "" {
		return "", ErrMissingMediaID
	}
	if !publishTime.After(time.Now()) {
		return "", fmt.Errorf("%w: publish time must be in the future", ErrInvalidPublishTime)
	}

	jobID := models.ScheduledJobID(mediaID)
	job := &models.ScheduledJob{
		ID:             jobID,
		MediaID:        mediaID,
		PublishTime:    publishTime,
		EnableMassSend: enableMassSend,
		Status:         models.JobStatusPending,
	}
	if err := s.jobs.UpsertJob(job); err != nil {
		return "", err
	}

	// Propagate the chosen publish time onto the article record. Zero matches
	// only means the draft was staged outside this system; not fatal.
	matched, err := s.history.RecordSaved(mediaID, mediaID, &publishTime)
	if err != nil {
		s.logger.Error("Failed to update article record with publish time",
			zap.String("media_id", mediaID), zap.Error(err))
	} else if !matched {
		s.logger.Warn("No article record matched scheduled draft",
			zap.String("media_id", mediaID))
	}

	s.timer.ScheduleAt(jobID, publishTime, func() {
		s.firePublish(jobID, mediaID, enableMassSend)
	})

	s.logger.Info("Publish job scheduled",
		zap.String("job_id", jobID),
		zap.String("media_id", mediaID),
		zap.Time("publish_time", publishTime),
		zap.Bool("enable_mass_send", enableMassSend))

	return jobID, nil
}

// CancelPublish disarms the timer and marks the job removed. Cancellation
// only affects jobs that have not fired: once a fire callback has started the
// timer entry is already gone and the transition below rejects the change.
func (s *PublishScheduler) CancelPublish(jobID string) error {
	s.timer.Cancel(jobID)

	if err := s.jobs.TransitionJob(jobID, models.JobStatusRemoved); err != nil {
		return err
	}

	s.logger.Info("Publish job removed", zap.String("job_id", jobID))
	return nil
}

// firePublish runs when a timer elapses: obtain a credential, publish the
// draft, record the outcome in both stores, then optionally chain the
// mass-send. A mass-send failure never reverts the completed publish.
func (s *PublishScheduler) firePublish(jobID, mediaID string, enableMassSend bool) {
	ctx := context.Background()
	s.logger.Info("Firing scheduled publish",
		zap.String("job_id", jobID),
		zap.String("media_id", mediaID))

	cred, err := s.gateway.ObtainCredential(ctx, s.wechatCfg.AppID, s.wechatCfg.AppSecret)
	if err != nil {
		s.markFailed(jobID, mediaID, "Failed to obtain access credential", err)
		return
	}

	result, err := s.gateway.PublishDraft(ctx, cred, mediaID)
	if err != nil {
		s.markFailed(jobID, mediaID, "Publish call failed", err)
		return
	}
	if result.ErrCode != 0 {
		s.markFailed(jobID, mediaID, "Platform rejected publish",
			&wechat.PlatformError{Op: "publish", Code: result.ErrCode, Msg: result.ErrMsg})
		return
	}

	// Two independent durable writes. If one lands and the other does not we
	// log the divergence; RecordPublished is idempotent, so a repair re-run
	// is safe.
	matched, ledgerErr := s.history.RecordPublished(mediaID, result)
	if ledgerErr != nil {
		s.logger.Error("Failed to record publish in history ledger",
			zap.String("media_id", mediaID), zap.Error(ledgerErr))
	} else if !matched {
		s.logger.Warn("No article record matched published draft",
			zap.String("media_id", mediaID))
	}

	jobErr := s.jobs.TransitionJob(jobID, models.JobStatusCompleted)
	if jobErr != nil {
		s.logger.Error("Failed to mark job completed",
			zap.String("job_id", jobID), zap.Error(jobErr))
	}

	if (ledgerErr == nil) != (jobErr == nil) {
		s.recordError("WARN", "Partial consistency after publish",
			fmt.Sprintf("ledger_err=%v job_err=%v", ledgerErr, jobErr), jobID, mediaID)
	}

	s.recordMetric("publish_success", jobID, mediaID)
	s.logger.Info("Scheduled publish completed",
		zap.String("job_id", jobID),
		zap.String("media_id", mediaID),
		zap.String("publish_id", result.PublishID))

	if enableMassSend {
		s.massSend(ctx, cred, jobID, mediaID, result.PublishID)
	}
}

// massSend is a best-effort follow-up to a successful publish. Failures are
// recorded and logged only.
func (s *PublishScheduler) massSend(ctx context.Context, cred *wechat.Credential, jobID, mediaID, publishID string) {
	if publishID == "" {
		s.recordError("ERROR", "Mass-send skipped", "publish result carried no publish_id", jobID, mediaID)
		return
	}

	result, err := s.gateway.MassSend(ctx, cred, publishID)
	if err != nil {
		s.recordError("ERROR", "Mass-send call failed", err.Error(), jobID, mediaID)
		s.recordMetric("mass_send_failure", jobID, mediaID)
		return
	}
	if result.ErrCode != 0 {
		platformErr := &wechat.PlatformError{Op: "mass_send", Code: result.ErrCode, Msg: result.ErrMsg}
		s.recordError("ERROR", "Platform rejected mass-send", platformErr.Error(), jobID, mediaID)
		s.recordMetric("mass_send_failure", jobID, mediaID)
		return
	}

	if _, err := s.history.RecordMassSent(publishID, result.MsgID); err != nil {
		s.logger.Error("Failed to record mass-send state",
			zap.String("publish_id", publishID), zap.Error(err))
	}
	s.recordMetric("mass_send_success", jobID, mediaID)
	s.logger.Info("Mass-send submitted",
		zap.String("publish_id", publishID),
		zap.String("msg_id", result.MsgID))
}

func (s *PublishScheduler) markFailed(jobID, mediaID, title string, cause error) {
	if err := s.jobs.TransitionJob(jobID, models.JobStatusFailed); err != nil {
		s.logger.Error("Failed to mark job failed",
			zap.String("job_id", jobID), zap.Error(err))
	}
	s.recordError("ERROR", title, cause.Error(), jobID, mediaID)
	s.recordMetric("publish_failure", jobID, mediaID)
	s.logger.Error("Scheduled publish failed",
		zap.String("job_id", jobID),
		zap.String("media_id", mediaID),
		zap.Error(cause))
}

// recoverJobs re-arms timers for jobs still pending with a future fire time.
// Jobs whose time elapsed while the process was down stay pending and are
// never auto-fired; they require explicit rescheduling or cancellation.
func (s *PublishScheduler) recoverJobs(now time.Time) error {
	jobs, err := s.jobs.ListPendingFutureJobs(now)
	if err != nil {
		return fmt.Errorf("failed to load pending jobs for recovery: %w", err)
	}

	for _, job := range jobs {
		jobID, mediaID, enableMassSend := job.ID, job.MediaID, job.EnableMassSend
		s.timer.ScheduleAt(jobID, job.PublishTime, func() {
			s.firePublish(jobID, mediaID, enableMassSend)
		})
		s.logger.Info("Recovered scheduled publish",
			zap.String("job_id", jobID),
			zap.Time("publish_time", job.PublishTime))
	}

	if overdue, err := s.jobs.CountPendingPastJobs(now); err == nil && overdue > 0 {
		s.logger.Warn("Pending jobs with elapsed publish time left untouched",
			zap.Int64("count", overdue))
	}

	s.logger.Info("Job recovery completed", zap.Int("recovered", len(jobs)))
	if s.monitoring != nil {
		_ = s.monitoring.RecordMetric("jobs_recovered", "counter", float64(len(jobs)), nil)
	}
	return nil
}

func (s *PublishScheduler) recordError(level, title, message, jobID, mediaID string) {
	if s.monitoring == nil {
		return
	}
	if err := s.monitoring.RecordError(level, "scheduler", title, message, WithJob(jobID), WithMedia(mediaID)); err != nil {
		s.logger.Error("Failed to persist error log", zap.Error(err))
	}
}

func (s *PublishScheduler) recordMetric(name, jobID, mediaID string) {
	if s.monitoring == nil {
		return
	}
	if err := s.monitoring.RecordMetric(name, "counter", 1, map[string]interface{}{
		"job_id":   jobID,
		"media_id": mediaID,
	}); err != nil {
		s.logger.Error("Failed to persist metric sample", zap.Error(err))
	}
}
