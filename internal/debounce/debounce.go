// Package debounce runs keyed actions after a quiet period. Scheduling a key
// again before it fires restarts its timer (trailing edge).
package debounce

import (
	"strings"
	"sync"
	"time"
)

// Timer is a pending callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Clock creates timers. RealClock is used in production; ManualClock drives
// tests deterministically.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules with time.AfterFunc.
type RealClock struct{}

// AfterFunc implements Clock.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type pending struct {
	timer Timer
	fn    func()
	seq   uint64
}

// Scheduler debounces actions by key.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	pending map[string]pending
	seq     uint64
}

// New constructs a scheduler. A nil clock selects RealClock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{clock: clock, pending: make(map[string]pending)}
}

// Schedule runs fn after delay unless key is scheduled, cancelled or flushed
// again first. fn runs without the scheduler lock held.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
	}
	s.seq++
	seq := s.seq
	timer := s.clock.AfterFunc(delay, func() { s.fire(key, seq) })
	s.pending[key] = pending{timer: timer, fn: fn, seq: seq}
}

func (s *Scheduler) fire(key string, seq uint64) {
	s.mu.Lock()
	p, ok := s.pending[key]
	if !ok || p.seq != seq {
		// superseded by a later Schedule or removed by Cancel/Flush
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()
	p.fn()
}

// Cancel drops the pending action for key. It reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, key)
	return true
}

// Flush runs the pending action for key immediately. It reports whether one
// existed.
func (s *Scheduler) Flush(key string) bool {
	s.mu.Lock()
	p, ok := s.pending[key]
	if ok {
		p.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()
	if ok {
		p.fn()
	}
	return ok
}

// FlushAll runs every pending action whose key has the given prefix.
func (s *Scheduler) FlushAll(prefix string) int {
	s.mu.Lock()
	var fns []func()
	for key, p := range s.pending {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		p.timer.Stop()
		delete(s.pending, key)
		fns = append(fns, p.fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// CancelAll drops every pending action whose key has the given prefix.
func (s *Scheduler) CancelAll(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, p := range s.pending {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		p.timer.Stop()
		delete(s.pending, key)
		n++
	}
	return n
}

// Pending reports whether key has a scheduled action.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Stop cancels every pending action.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, key)
	}
}
