package scheduler

import (
	"context"
	"slotbook/pkg/logger"
	"sync"
	"time"
)

// ExpireFunc handles a fired payment hold. It runs on the timer goroutine
// with a fresh context.
type ExpireFunc func(ctx context.Context, bookingID string)

// HoldScheduler arms one in-memory timer per held booking. Deadlines live in
// the booking record; timers here are just the wakeup mechanism and are
// rebuilt from storage on startup.
type HoldScheduler struct {
	mu          sync.Mutex
	timers      map[string]*time.Timer
	expire      ExpireFunc
	callTimeout time.Duration
	log         *logger.Logger
	stopped     bool
}

func NewHoldScheduler(callTimeout time.Duration, log *logger.Logger) *HoldScheduler {
	return &HoldScheduler{
		timers:      make(map[string]*time.Timer),
		callTimeout: callTimeout,
		log:         log,
	}
}

// SetExpireFunc wires the expiry callback. Must be called before the first
// ArmAt; kept separate from the constructor to break the scheduler/service
// construction cycle.
func (s *HoldScheduler) SetExpireFunc(fn ExpireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire = fn
}

// ArmAt schedules the hold for a booking to fire at the given deadline.
// Re-arming an already armed booking replaces the previous timer. Deadlines
// in the past fire immediately.
func (s *HoldScheduler) ArmAt(bookingID string, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if existing, ok := s.timers[bookingID]; ok {
		existing.Stop()
	}

	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}

	s.timers[bookingID] = time.AfterFunc(delay, func() {
		s.fire(bookingID)
	})

	s.log.Debug("Payment hold armed", "booking_id", bookingID, "deadline", deadline)
}

// Disarm cancels the hold for a booking. Returns false when no timer was
// armed, which is not an error: the hold may have fired already, or this is
// a duplicate disarm after a race the state machine resolved.
func (s *HoldScheduler) Disarm(bookingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[bookingID]
	if !ok {
		return false
	}

	timer.Stop()
	delete(s.timers, bookingID)

	s.log.Debug("Payment hold disarmed", "booking_id", bookingID)
	return true
}

// Armed reports whether a timer currently exists for the booking.
func (s *HoldScheduler) Armed(bookingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[bookingID]
	return ok
}

// Stop cancels every pending timer. Used during shutdown; holds persist in
// the booking records and are reconciled on the next boot.
func (s *HoldScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}

	s.log.Info("Hold scheduler stopped")
}

func (s *HoldScheduler) fire(bookingID string) {
	s.mu.Lock()
	delete(s.timers, bookingID)
	expire := s.expire
	s.mu.Unlock()

	if expire == nil {
		s.log.Error("Payment hold fired with no expire callback", "booking_id", bookingID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()

	expire(ctx, bookingID)
}
