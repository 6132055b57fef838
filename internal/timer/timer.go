// Package timer provides one-shot wake-ups keyed by schedule ID. It keeps a
// min-heap of entries and a single goroutine that sleeps until the earliest
// fire time, with a max-sleep cap so NTP steps, DST transitions, and system
// sleep cannot strand the timer. Entries live in memory only — durability
// comes from the schedule store, from which the heap is rebuilt at startup.
package timer

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

const maxSleepCap = 60 * time.Second

// Entry associates a schedule ID with a future fire time.
type Entry struct {
	ScheduleID string    `json:"scheduleId"`
	When       time.Time `json:"when"`
}

// Service fires a callback when an armed entry comes due. At most one entry
// exists per schedule ID (arm is idempotent).
type Service struct {
	mu      sync.Mutex
	entries entryHeap
	keys    map[string]struct{}
	wake    chan struct{}

	onFire func(scheduleID string)
	logger *slog.Logger
}

// New creates a Service. onFire is invoked on the service goroutine; handlers
// that block should hand off to their own goroutine.
func New(onFire func(scheduleID string), logger *slog.Logger) *Service {
	return &Service{
		keys:   make(map[string]struct{}),
		wake:   make(chan struct{}, 1),
		onFire: onFire,
		logger: logger.With("component", "timer"),
	}
}

// Start runs the fire loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info("timer service started")
	for {
		timerCh, timer := s.nextSleep()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("timer service shut down")
			return
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerCh:
			s.fireDue()
		}
	}
}

func (s *Service) nextSleep() (<-chan time.Time, *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dur := maxSleepCap
	if s.entries.Len() > 0 {
		if until := time.Until(s.entries[0].When); until < dur {
			dur = until
		}
	}
	if dur < 0 {
		dur = 0
	}
	t := time.NewTimer(dur)
	return t.C, t
}

func (s *Service) fireDue() {
	now := time.Now()

	var due []Entry
	s.mu.Lock()
	for s.entries.Len() > 0 && !s.entries[0].When.After(now) {
		e := heap.Pop(&s.entries).(Entry)
		delete(s.keys, e.ScheduleID)
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		s.logger.Debug("timer fired", "schedule_id", e.ScheduleID)
		s.onFire(e.ScheduleID)
	}
}

// Arm registers a one-shot entry. An entry already armed for the same ID is
// left untouched and Arm returns false; a zero or far-past fire time fires on
// the next loop pass rather than being rejected.
func (s *Service) Arm(scheduleID string, when time.Time) bool {
	if scheduleID == "" {
		s.logger.Error("arm rejected: empty schedule id")
		return false
	}

	s.mu.Lock()
	if _, exists := s.keys[scheduleID]; exists {
		s.mu.Unlock()
		s.logger.Debug("already armed, skipping", "schedule_id", scheduleID)
		return false
	}
	heap.Push(&s.entries, Entry{ScheduleID: scheduleID, When: when})
	s.keys[scheduleID] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("timer armed", "schedule_id", scheduleID, "when", when)
	s.kick()
	return true
}

// Clear cancels the entry for the given ID. Absence is not an error.
func (s *Service) Clear(scheduleID string) {
	s.mu.Lock()
	if _, exists := s.keys[scheduleID]; !exists {
		s.mu.Unlock()
		return
	}
	for i := range s.entries {
		if s.entries[i].ScheduleID == scheduleID {
			heap.Remove(&s.entries, i)
			break
		}
	}
	delete(s.keys, scheduleID)
	s.mu.Unlock()

	s.logger.Info("timer cleared", "schedule_id", scheduleID)
	s.kick()
}

// Armed reports whether an entry exists for the given ID.
func (s *Service) Armed(scheduleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[scheduleID]
	return ok
}

// ListAll returns a snapshot of pending entries, unordered.
func (s *Service) ListAll() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Service) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
