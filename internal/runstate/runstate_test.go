package runstate

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestRunState_SingleTransition(t *testing.T) {
	s := New()

	if s.Succeeded() {
		t.Fatal("new RunState should not be succeeded")
	}
	if !s.SucceededAt().IsZero() {
		t.Error("SucceededAt() should be zero before MarkSuccess")
	}

	if !s.MarkSuccess() {
		t.Error("first MarkSuccess() = false, want true")
	}
	if s.MarkSuccess() {
		t.Error("second MarkSuccess() = true, want false")
	}
	if !s.Succeeded() {
		t.Error("Succeeded() = false after MarkSuccess")
	}
	if s.SucceededAt().IsZero() {
		t.Error("SucceededAt() should be set after MarkSuccess")
	}
}

func TestRunState_ConcurrentMarkSuccess(t *testing.T) {
	s := New()

	var transitions atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.MarkSuccess() {
				transitions.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := transitions.Load(); got != 1 {
		t.Errorf("MarkSuccess() transitioned %d times, want exactly 1", got)
	}
}
