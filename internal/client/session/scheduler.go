package session

import (
	"sync"
	"time"
)

// refreshScheduler owns the one-shot refresh alarm. Arming cancels any
// previously armed timer, so at most one refresh is ever pending. Each arm
// bumps an epoch counter; a firing whose epoch is stale does nothing, which
// keeps a late callback from acting on a session that re-armed or logged
// out in the meantime.
type refreshScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	epoch uint64
	fire  func()
}

func newRefreshScheduler(fire func()) *refreshScheduler {
	return &refreshScheduler{fire: fire}
}

// Arm schedules fire to run after d, replacing any pending alarm.
func (s *refreshScheduler) Arm(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.epoch++
	epoch := s.epoch
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		stale := s.epoch != epoch
		if !stale {
			s.timer = nil
		}
		s.mu.Unlock()
		if stale {
			return
		}
		s.fire()
	})
}

// Cancel drops any pending alarm. Safe to call when none is armed.
func (s *refreshScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.cancelLocked()
}

func (s *refreshScheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Pending reports whether an alarm is currently armed.
func (s *refreshScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
