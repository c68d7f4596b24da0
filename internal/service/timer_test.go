package service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTimerFiresOnce(t *testing.T) {
	timer := NewTimerService(zap.NewNop())
	defer timer.Stop()

	var fired int32
	timer.ScheduleAt("t1", time.Now().Add(20*time.Millisecond), func() {
		atomic.AddInt32(&fired, 1)
	})

	assert.True(t, timer.Armed("t1"))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
	assert.False(t, timer.Armed("t1"))

	// cancel after fire is a no-op
	assert.False(t, timer.Cancel("t1"))
}

func TestTimerReplaceOnReschedule(t *testing.T) {
	timer := NewTimerService(zap.NewNop())
	defer timer.Stop()

	var first, second int32
	timer.ScheduleAt("t1", time.Now().Add(30*time.Millisecond), func() {
		atomic.AddInt32(&first, 1)
	})
	timer.ScheduleAt("t1", time.Now().Add(60*time.Millisecond), func() {
		atomic.AddInt32(&second, 1)
	})

	assert.Equal(t, 1, timer.Len())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first), "replaced timer must not fire")
	assert.Equal(t, int32(1), atomic.LoadInt32(&second))
}

func TestTimerCancel(t *testing.T) {
	timer := NewTimerService(zap.NewNop())
	defer timer.Stop()

	var fired int32
	timer.ScheduleAt("t1", time.Now().Add(30*time.Millisecond), func() {
		atomic.AddInt32(&fired, 1)
	})

	assert.True(t, timer.Cancel("t1"))
	assert.False(t, timer.Armed("t1"))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))

	// cancel of an unknown id reports false
	assert.False(t, timer.Cancel("unknown"))
}

func TestTimerStopDisarmsAll(t *testing.T) {
	timer := NewTimerService(zap.NewNop())

	var fired int32
	for _, id := range []string{"a", "b", "c"} {
		timer.ScheduleAt(id, time.Now().Add(30*time.Millisecond), func() {
			atomic.AddInt32(&fired, 1)
		})
	}
	assert.Equal(t, 3, timer.Len())

	timer.Stop()
	assert.Equal(t, 0, timer.Len())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}
