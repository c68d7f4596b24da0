package service

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TimerService arms one-shot wall-clock timers keyed by id. It holds no
// durable state: after a restart every armed timer is gone, and the
// orchestrator re-arms from the job store.
type TimerService struct {
	logger *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerService(logger *zap.Logger) *TimerService {
	return &TimerService{
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

// ScheduleAt arms a one-shot timer for fireTime, replacing any existing timer
// with the same id. The callback runs exactly once on its own goroutine, after
// which the id is no longer armed.
func (t *TimerService) ScheduleAt(id string, fireTime time.Time, callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[id]; ok {
		existing.Stop()
		t.logger.Debug("Replacing armed timer", zap.String("id", id))
	}

	delay := time.Until(fireTime)
	if delay < 0 {
		delay = 0
	}

	t.timers[id] = time.AfterFunc(delay, func() {
		// Disarm before running the callback so a cancel arriving mid-fire is
		// a no-op: once the fire has started it always wins.
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()

		callback()
	})

	t.logger.Info("Timer armed",
		zap.String("id", id),
		zap.Time("fire_time", fireTime))
}

// Cancel disarms a pending timer. It reports false when the id is not armed,
// which includes timers that have already fired.
func (t *TimerService) Cancel(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.timers[id]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.timers, id)

	t.logger.Info("Timer disarmed", zap.String("id", id))
	return true
}

// Armed reports whether the id currently has a pending timer.
func (t *TimerService) Armed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[id]
	return ok
}

// Len returns the number of armed timers.
func (t *TimerService) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Stop disarms every pending timer. Callbacks already started keep running.
func (t *TimerService) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	t.logger.Info("Timer service stopped")
}
