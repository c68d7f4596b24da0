package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lawrencezcl/AITurbo/internal/models"
)

// ErrJobNotFound is returned when a job id has no row in the store.
var ErrJobNotFound = errors.New("scheduled job not found")

// ErrInvalidTransition is returned when a status change would leave a
// terminal state.
var ErrInvalidTransition = errors.New("invalid job status transition")

// GormJobStore persists scheduled jobs in the scheduled_jobs table. Rows are
// only ever upserted or status-transitioned, never deleted, so the table
// doubles as the audit trail.
type GormJobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) *GormJobStore {
	return &GormJobStore{db: db}
}

func (s *GormJobStore) UpsertJob(job *models.ScheduledJob) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"publish_time":     job.PublishTime,
			"enable_mass_send": job.EnableMassSend,
			"status":           job.Status,
			"updated_at":       time.Now(),
		}),
	}).Create(job).Error
	if err != nil {
		return fmt.Errorf("failed to upsert scheduled job %s: %w", job.ID, err)
	}
	return nil
}

func (s *GormJobStore) TransitionJob(id string, to models.JobStatus) error {
	var job models.ScheduledJob
	if err := s.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("failed to load scheduled job %s: %w", id, err)
	}

	if !job.Status.CanTransition(to) {
		return fmt.Errorf("%w: job %s is %s, cannot become %s", ErrInvalidTransition, id, job.Status, to)
	}

	err := s.db.Model(&models.ScheduledJob{}).
		Where("id = ? AND status = ?", id, job.Status).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to transition scheduled job %s: %w", id, err)
	}
	return nil
}

func (s *GormJobStore) GetJob(id string) (*models.ScheduledJob, error) {
	var job models.ScheduledJob
	if err := s.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load scheduled job %s: %w", id, err)
	}
	return &job, nil
}

func (s *GormJobStore) ListPendingFutureJobs(now time.Time) ([]models.ScheduledJob, error) {
	var jobs []models.ScheduledJob
	err := s.db.Where("status = ? AND publish_time > ?", models.JobStatusPending, now).
		Order("publish_time asc").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	return jobs, nil
}

func (s *GormJobStore) CountPendingPastJobs(now time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.ScheduledJob{}).
		Where("status = ? AND publish_time <= ?", models.JobStatusPending, now).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue pending jobs: %w", err)
	}
	return count, nil
}

func (s *GormJobStore) ListJobs(limit int) ([]models.ScheduledJob, error) {
	var jobs []models.ScheduledJob
	err := s.db.Order("updated_at desc").Limit(limit).Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled jobs: %w", err)
	}
	return jobs, nil
}
