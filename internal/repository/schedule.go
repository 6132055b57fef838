package repository

import (
	"context"
	"time"

	"github.com/writestack/noteflow/internal/domain"
)

// Trigger code depends on this interface, not the concrete store. That keeps
// the orchestrator testable with an in-memory fake and leaves the storage
// engine swappable.
type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	GetByID(ctx context.Context, scheduleID string) (*domain.Schedule, error)
	List(ctx context.Context) ([]*domain.Schedule, error)

	// Delete is idempotent: removing an absent schedule is not an error.
	// It refuses to remove a schedule with is_processing set
	// (domain.ErrScheduleBusy) so an in-flight trigger cannot race a
	// concurrent delete.
	Delete(ctx context.Context, scheduleID string) error

	// UpdateStatus is a row-level read-modify-write; returns the updated
	// record, or domain.ErrScheduleNotFound.
	UpdateStatus(ctx context.Context, scheduleID string, status domain.Status, errMsg *string) (*domain.Schedule, error)

	// ClaimProcessing atomically sets is_processing for the given ID. It
	// returns domain.ErrAlreadyProcessing when another trigger owns the
	// schedule and domain.ErrScheduleNotFound when no such row exists. This
	// is the at-most-one-concurrent-execution guard.
	ClaimProcessing(ctx context.Context, scheduleID string) (*domain.Schedule, error)

	// ReleaseProcessing clears is_processing. Absence is not an error — the
	// release runs on every exit path, including after a successful delete.
	ReleaseProcessing(ctx context.Context, scheduleID string) error

	// MarkMissed flips still-"scheduled" rows whose fire time passed before
	// the cutoff to "missed", skipping rows currently processing. Returns the
	// affected schedule IDs.
	MarkMissed(ctx context.Context, cutoff time.Time) ([]string, error)

	// SetSubstackNoteID records the platform-assigned note ID after a
	// successful publish.
	SetSubstackNoteID(ctx context.Context, scheduleID, noteID string) error
}
