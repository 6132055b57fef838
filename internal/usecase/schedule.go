package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/writestack/noteflow/internal/domain"
	"github.com/writestack/noteflow/internal/repository"
	"github.com/writestack/noteflow/internal/timer"
	"github.com/writestack/noteflow/internal/trigger"
)

// TimerService is the slice of the timer the usecase needs.
type TimerService interface {
	Arm(scheduleID string, when time.Time) bool
	Clear(scheduleID string)
	ListAll() []timer.Entry
}

// Triggerer runs the full trigger lifecycle for one schedule.
type Triggerer interface {
	Trigger(ctx context.Context, scheduleID string, opts trigger.Options) trigger.Result
}

// NotesFetcher retrieves backend display records for schedule IDs.
type NotesFetcher interface {
	FetchNotes(ctx context.Context, scheduleIDs []string) ([]domain.Note, error)
}

type ScheduleUsecase struct {
	repo   repository.ScheduleRepository
	timers TimerService
	runner Triggerer
	notes  NotesFetcher
}

func NewScheduleUsecase(repo repository.ScheduleRepository, timers TimerService, runner Triggerer, notes NotesFetcher) *ScheduleUsecase {
	return &ScheduleUsecase{repo: repo, timers: timers, runner: runner, notes: notes}
}

type CreateScheduleInput struct {
	ScheduleID string
	UserID     string
	Timestamp  time.Time
	NoteID     *string
}

// CreateSchedule persists a new schedule and arms its timer entry. The
// schedule ID comes from the backend; creating the same ID twice is a
// conflict, not an upsert.
func (u *ScheduleUsecase) CreateSchedule(ctx context.Context, input CreateScheduleInput) (*domain.Schedule, error) {
	if input.ScheduleID == "" || input.UserID == "" || input.Timestamp.IsZero() {
		return nil, domain.ErrInvalidParameters
	}

	s, err := u.repo.Create(ctx, &domain.Schedule{
		ScheduleID: input.ScheduleID,
		UserID:     input.UserID,
		Timestamp:  input.Timestamp,
		NoteID:     input.NoteID,
	})
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	// A timer for a past timestamp fires on the next loop pass, which is the
	// desired behavior for "schedule for right now".
	u.timers.Arm(s.ScheduleID, s.Timestamp)
	return s, nil
}

// DeleteSchedule removes a schedule and its timer entry. Deleting an absent
// schedule succeeds; deleting one mid-trigger fails with ErrScheduleBusy.
func (u *ScheduleUsecase) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if err := u.repo.Delete(ctx, scheduleID); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	u.timers.Clear(scheduleID)
	return nil
}

type ListSchedulesResult struct {
	Schedules []*domain.Schedule
	Alarms    []timer.Entry
}

// ListSchedules returns the persisted set alongside live timer entries so
// callers can detect drift between the two.
func (u *ScheduleUsecase) ListSchedules(ctx context.Context) (ListSchedulesResult, error) {
	schedules, err := u.repo.List(ctx)
	if err != nil {
		return ListSchedulesResult{}, fmt.Errorf("list schedules: %w", err)
	}
	return ListSchedulesResult{
		Schedules: schedules,
		Alarms:    u.timers.ListAll(),
	}, nil
}

// ListNotes fetches backend display records for every stored schedule.
func (u *ScheduleUsecase) ListNotes(ctx context.Context) ([]domain.Note, error) {
	schedules, err := u.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	ids := make([]string, len(schedules))
	for i, s := range schedules {
		ids[i] = s.ScheduleID
	}
	return u.notes.FetchNotes(ctx, ids)
}

// SendNow triggers a schedule immediately, bypassing the can-post
// precondition — the manual retry path for missed or failed schedules.
func (u *ScheduleUsecase) SendNow(ctx context.Context, scheduleID string) (trigger.Result, error) {
	if _, err := u.repo.GetByID(ctx, scheduleID); err != nil {
		return trigger.Result{}, fmt.Errorf("get schedule: %w", err)
	}
	return u.runner.Trigger(ctx, scheduleID, trigger.Options{SkipCanPostCheck: true}), nil
}
