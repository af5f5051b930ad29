package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"slotbook/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
}

func TestArmAt_FiresAtDeadline(t *testing.T) {
	s := NewHoldScheduler(time.Second, testLogger())
	defer s.Stop()

	fired := make(chan string, 1)
	s.SetExpireFunc(func(ctx context.Context, bookingID string) {
		fired <- bookingID
	})

	s.ArmAt("b1", time.Now().Add(20*time.Millisecond))

	select {
	case id := <-fired:
		if id != "b1" {
			t.Errorf("expected booking b1, got %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("hold never fired")
	}

	if s.Armed("b1") {
		t.Error("timer must be removed after firing")
	}
}

func TestArmAt_PastDeadlineFiresImmediately(t *testing.T) {
	s := NewHoldScheduler(time.Second, testLogger())
	defer s.Stop()

	fired := make(chan struct{}, 1)
	s.SetExpireFunc(func(ctx context.Context, bookingID string) {
		fired <- struct{}{}
	})

	s.ArmAt("b1", time.Now().Add(-time.Minute))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("overdue hold never fired")
	}
}

func TestArmAt_RearmReplacesTimer(t *testing.T) {
	s := NewHoldScheduler(time.Second, testLogger())
	defer s.Stop()

	var mu sync.Mutex
	count := 0
	fired := make(chan struct{}, 2)
	s.SetExpireFunc(func(ctx context.Context, bookingID string) {
		mu.Lock()
		count++
		mu.Unlock()
		fired <- struct{}{}
	})

	s.ArmAt("b1", time.Now().Add(time.Hour))
	s.ArmAt("b1", time.Now().Add(20*time.Millisecond))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("re-armed hold never fired")
	}

	// Give a replaced timer a chance to fire wrongly
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected exactly one expiry, got %d", count)
	}
}

func TestDisarm(t *testing.T) {
	s := NewHoldScheduler(time.Second, testLogger())
	defer s.Stop()

	s.SetExpireFunc(func(ctx context.Context, bookingID string) {
		t.Error("disarmed hold must not fire")
	})

	s.ArmAt("b1", time.Now().Add(30*time.Millisecond))

	if !s.Disarm("b1") {
		t.Error("expected Disarm to report an armed timer")
	}
	if s.Disarm("b1") {
		t.Error("expected second Disarm to report nothing armed")
	}
	if s.Disarm("never-armed") {
		t.Error("expected Disarm of unknown booking to return false")
	}

	time.Sleep(60 * time.Millisecond)
}

func TestStop_CancelsPendingTimers(t *testing.T) {
	s := NewHoldScheduler(time.Second, testLogger())

	s.SetExpireFunc(func(ctx context.Context, bookingID string) {
		t.Error("hold must not fire after Stop")
	})

	s.ArmAt("b1", time.Now().Add(30*time.Millisecond))
	s.ArmAt("b2", time.Now().Add(30*time.Millisecond))
	s.Stop()

	// Arming after Stop is ignored
	s.ArmAt("b3", time.Now().Add(10*time.Millisecond))
	if s.Armed("b3") {
		t.Error("stopped scheduler must not arm new timers")
	}

	time.Sleep(60 * time.Millisecond)
}
