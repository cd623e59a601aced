package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduleTrailingEdge(t *testing.T) {
	clock := NewManualClock()
	s := New(clock)
	var calls []int

	s.Schedule("k", 100*time.Millisecond, func() { calls = append(calls, 1) })
	clock.Advance(60 * time.Millisecond)
	s.Schedule("k", 100*time.Millisecond, func() { calls = append(calls, 2) })
	clock.Advance(60 * time.Millisecond)
	if len(calls) != 0 {
		t.Fatalf("expected reset timer, got calls %v", calls)
	}
	clock.Advance(40 * time.Millisecond)
	if len(calls) != 1 || calls[0] != 2 {
		t.Fatalf("expected only the latest action, got %v", calls)
	}
	if s.Pending("k") {
		t.Fatalf("expected key cleared after firing")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	clock := NewManualClock()
	s := New(clock)
	fired := map[string]bool{}
	s.Schedule("a", 10*time.Millisecond, func() { fired["a"] = true })
	s.Schedule("b", 20*time.Millisecond, func() { fired["b"] = true })
	clock.Advance(15 * time.Millisecond)
	if !fired["a"] || fired["b"] {
		t.Fatalf("unexpected firing %v", fired)
	}
}

func TestCancelAndFlush(t *testing.T) {
	clock := NewManualClock()
	s := New(clock)
	var n int
	s.Schedule("x", time.Second, func() { n++ })
	if !s.Cancel("x") {
		t.Fatalf("expected pending action")
	}
	clock.Advance(2 * time.Second)
	if n != 0 {
		t.Fatalf("cancelled action ran")
	}
	if s.Cancel("x") {
		t.Fatalf("second cancel must report false")
	}

	s.Schedule("y", time.Second, func() { n++ })
	if !s.Flush("y") || n != 1 {
		t.Fatalf("flush did not run action")
	}
	clock.Advance(2 * time.Second)
	if n != 1 {
		t.Fatalf("flushed action ran twice")
	}
	if clock.Len() != 0 {
		t.Fatalf("expected timers stopped, %d armed", clock.Len())
	}
}

func TestFlushAllByPrefix(t *testing.T) {
	s := New(NewManualClock())
	var n int
	s.Schedule("edit:1", time.Second, func() { n++ })
	s.Schedule("edit:2", time.Second, func() { n++ })
	s.Schedule("hide:1", time.Second, func() { n += 10 })
	if got := s.FlushAll("edit:"); got != 2 || n != 2 {
		t.Fatalf("flushed %d, n=%d", got, n)
	}
	if !s.Pending("hide:1") {
		t.Fatalf("other prefix flushed")
	}
	s.Stop()
	if s.Pending("hide:1") {
		t.Fatalf("stop left pending action")
	}
}

func TestRealClock(t *testing.T) {
	s := New(nil)
	var n atomic.Int32
	done := make(chan struct{})
	s.Schedule("r", 5*time.Millisecond, func() { n.Add(1) })
	s.Schedule("r", 5*time.Millisecond, func() {
		n.Add(1)
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	time.Sleep(20 * time.Millisecond)
	if n.Load() != 1 {
		t.Fatalf("expected a single firing, got %d", n.Load())
	}
}

func TestCancelAllByPrefix(t *testing.T) {
	clock := NewManualClock()
	s := New(clock)
	ran := 0
	s.Schedule("hide:a", time.Millisecond, func() { ran++ })
	s.Schedule("hide:b", time.Millisecond, func() { ran++ })
	s.Schedule("edit:a", time.Millisecond, func() { ran++ })

	if n := s.CancelAll("hide:"); n != 2 {
		t.Fatalf("expected 2 cancelled, got %d", n)
	}
	clock.Advance(time.Second)
	if ran != 1 {
		t.Fatalf("expected only the edit to run, got %d", ran)
	}
	if clock.Len() != 0 {
		t.Fatalf("expected no armed timers, got %d", clock.Len())
	}
}
