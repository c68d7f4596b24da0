package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduledJobID(t *testing.T) {
	assert.Equal(t, "publish_m1", ScheduledJobID("m1"))

	mediaID, err := MediaIDFromJobID("publish_m1")
	assert.NoError(t, err)
	assert.Equal(t, "m1", mediaID)

	_, err = MediaIDFromJobID("m1")
	assert.Error(t, err)

	_, err = MediaIDFromJobID("publish_")
	assert.Error(t, err)
}

func TestJobStatusTransitions(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusRemoved.Terminal())

	assert.True(t, JobStatusPending.CanTransition(JobStatusCompleted))
	assert.True(t, JobStatusPending.CanTransition(JobStatusFailed))
	assert.True(t, JobStatusPending.CanTransition(JobStatusRemoved))

	// terminal states absorb
	assert.False(t, JobStatusCompleted.CanTransition(JobStatusPending))
	assert.False(t, JobStatusCompleted.CanTransition(JobStatusFailed))
	assert.False(t, JobStatusFailed.CanTransition(JobStatusCompleted))
	assert.False(t, JobStatusRemoved.CanTransition(JobStatusPending))

	// self transitions are not transitions
	assert.False(t, JobStatusPending.CanTransition(JobStatusPending))
}

func TestArticleStatusTransitions(t *testing.T) {
	assert.True(t, ArticleStatusGenerated.CanTransition(ArticleStatusSaved))
	assert.True(t, ArticleStatusGenerated.CanTransition(ArticleStatusPublished))
	assert.True(t, ArticleStatusSaved.CanTransition(ArticleStatusPublished))

	assert.False(t, ArticleStatusSaved.CanTransition(ArticleStatusGenerated))
	assert.False(t, ArticleStatusPublished.CanTransition(ArticleStatusSaved))
	assert.False(t, ArticleStatusPublished.CanTransition(ArticleStatusGenerated))
	assert.False(t, ArticleStatusPublished.CanTransition(ArticleStatusPublished))
}
