package models

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a scheduled publish job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRemoved   JobStatus = "removed"
)

// Terminal reports whether no further transition may leave this status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusRemoved:
		return true
	}
	return false
}

// CanTransition reports whether a job in status s may move to the target
// status. Only pending jobs move; completed/failed/removed absorb.
func (s JobStatus) CanTransition(to JobStatus) bool {
	if s == to {
		return false
	}
	return s == JobStatusPending && to.Terminal()
}

// ScheduledJobIDPrefix keys job rows and timers off the media id, so the same
// draft never carries two live jobs.
const ScheduledJobIDPrefix = "publish_"

// ScheduledJobID derives the deterministic job id for a media object.
func ScheduledJobID(mediaID string) string {
	return ScheduledJobIDPrefix + mediaID
}

// MediaIDFromJobID is the inverse of ScheduledJobID.
func MediaIDFromJobID(jobID string) (string, error) {
	if !strings.HasPrefix(jobID, ScheduledJobIDPrefix) || len(jobID) == len(ScheduledJobIDPrefix) {
		return "", fmt.Errorf("malformed job id: %q", jobID)
	}
	return strings.TrimPrefix(jobID, ScheduledJobIDPrefix), nil
}

// ScheduledJob is the durable record of one future publish. Rows are never
// physically deleted; cancellation and fire outcomes are status transitions.
type ScheduledJob struct {
	ID             string    `gorm:"primaryKey;size:100" json:"id"`
	MediaID        string    `gorm:"not null;size:100;index" json:"media_id"`
	PublishTime    time.Time `gorm:"not null" json:"publish_time"`
	EnableMassSend bool      `gorm:"default:false" json:"enable_mass_send"`
	Status         JobStatus `gorm:"size:20;default:'pending';index" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ScheduledJob) TableName() string {
	return "scheduled_jobs"
}
