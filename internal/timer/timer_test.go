package timer_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/writestack/noteflow/internal/timer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fireRecorder collects fired schedule IDs and signals each fire on a channel.
type fireRecorder struct {
	mu    sync.Mutex
	fired []string
	ch    chan string
}

func newFireRecorder() *fireRecorder {
	return &fireRecorder{ch: make(chan string, 16)}
}

func (r *fireRecorder) onFire(scheduleID string) {
	r.mu.Lock()
	r.fired = append(r.fired, scheduleID)
	r.mu.Unlock()
	r.ch <- scheduleID
}

func (r *fireRecorder) waitForFire(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.ch:
		if got != want {
			t.Fatalf("fired %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q to fire", want)
	}
}

func startService(t *testing.T, rec *fireRecorder) *timer.Service {
	t.Helper()
	svc := timer.New(rec.onFire, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.Start(ctx)
	return svc
}

func TestArm_FiresWhenDue(t *testing.T) {
	rec := newFireRecorder()
	svc := startService(t, rec)

	if !svc.Arm("sch-1", time.Now().Add(20*time.Millisecond)) {
		t.Fatal("Arm returned false for a fresh ID")
	}
	rec.waitForFire(t, "sch-1")

	if svc.Armed("sch-1") {
		t.Error("entry still armed after firing")
	}
}

func TestArm_PastDue_FiresImmediately(t *testing.T) {
	rec := newFireRecorder()
	svc := startService(t, rec)

	svc.Arm("sch-late", time.Now().Add(-time.Hour))
	rec.waitForFire(t, "sch-late")
}

func TestArm_SameID_IsIdempotent(t *testing.T) {
	rec := newFireRecorder()
	svc := startService(t, rec)

	when := time.Now().Add(30 * time.Millisecond)
	if !svc.Arm("sch-1", when) {
		t.Fatal("first Arm returned false")
	}
	if svc.Arm("sch-1", when.Add(time.Hour)) {
		t.Error("second Arm for the same ID returned true")
	}

	rec.waitForFire(t, "sch-1")

	// Only the first registration should ever fire.
	select {
	case id := <-rec.ch:
		t.Fatalf("duplicate fire for %q", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClear_CancelsPendingEntry(t *testing.T) {
	rec := newFireRecorder()
	svc := startService(t, rec)

	svc.Arm("sch-1", time.Now().Add(50*time.Millisecond))
	svc.Clear("sch-1")

	if svc.Armed("sch-1") {
		t.Fatal("entry still armed after Clear")
	}
	select {
	case id := <-rec.ch:
		t.Fatalf("cleared entry %q fired anyway", id)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestClear_AbsentID_IsNoOp(t *testing.T) {
	rec := newFireRecorder()
	svc := startService(t, rec)

	svc.Clear("never-armed") // must not panic or wedge the loop

	svc.Arm("sch-1", time.Now().Add(20*time.Millisecond))
	rec.waitForFire(t, "sch-1")
}

func TestFiring_OrdersByFireTime(t *testing.T) {
	rec := newFireRecorder()
	svc := startService(t, rec)

	now := time.Now()
	svc.Arm("third", now.Add(90*time.Millisecond))
	svc.Arm("first", now.Add(20*time.Millisecond))
	svc.Arm("second", now.Add(50*time.Millisecond))

	rec.waitForFire(t, "first")
	rec.waitForFire(t, "second")
	rec.waitForFire(t, "third")
}

func TestListAll_SnapshotsPendingEntries(t *testing.T) {
	svc := timer.New(func(string) {}, discardLogger())

	when := time.Now().Add(time.Hour)
	svc.Arm("sch-1", when)
	svc.Arm("sch-2", when.Add(time.Minute))

	entries := svc.ListAll()
	if len(entries) != 2 {
		t.Fatalf("ListAll returned %d entries, want 2", len(entries))
	}
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.ScheduleID] = true
	}
	if !seen["sch-1"] || !seen["sch-2"] {
		t.Errorf("snapshot missing entries: %+v", entries)
	}
}
