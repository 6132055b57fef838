package timer

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/writestack/noteflow/internal/domain"
	"github.com/writestack/noteflow/internal/metrics"
	"github.com/writestack/noteflow/internal/repository"
)

// Reconciler repairs drift between the schedule store and the in-memory timer
// heap. It re-arms future schedules whose entry was lost (process restart) and
// marks overdue schedules missed instead of firing them retroactively —
// nobody wants a note published hours late because the daemon rebooted.
type Reconciler struct {
	repo   repository.ScheduleRepository
	timers *Service
	logger *slog.Logger
	grace  time.Duration
	cron   *cron.Cron
}

func NewReconciler(repo repository.ScheduleRepository, timers *Service, logger *slog.Logger, grace time.Duration) *Reconciler {
	return &Reconciler{
		repo:   repo,
		timers: timers,
		logger: logger.With("component", "reconciler"),
		grace:  grace,
	}
}

// Start runs one immediate recovery pass, then schedules periodic sweeps with
// the given cron spec until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context, spec string) error {
	r.Sweep(ctx)

	c := cron.New()
	if _, err := c.AddFunc(spec, func() { r.Sweep(ctx) }); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	r.logger.Info("reconciler started", "spec", spec, "grace", r.grace)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		r.logger.Info("reconciler shut down")
	}()
	return nil
}

// Sweep performs a single reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.ReconcileCycleDuration.Observe(time.Since(start).Seconds())
	}()

	schedules, err := r.repo.List(ctx)
	if err != nil {
		r.logger.Error("reconciler list schedules", "error", err)
		return
	}

	now := time.Now()
	rearmed := 0
	for _, s := range schedules {
		if s.Status != domain.StatusScheduled || s.Timestamp.Before(now) {
			continue
		}
		if r.timers.Armed(s.ScheduleID) {
			continue
		}
		if r.timers.Arm(s.ScheduleID, s.Timestamp) {
			rearmed++
		}
	}
	if rearmed > 0 {
		metrics.TimersRearmedTotal.Add(float64(rearmed))
		r.logger.Info("re-armed lost timers", "count", rearmed)
	}

	missed, err := r.repo.MarkMissed(ctx, now.Add(-r.grace))
	if err != nil {
		r.logger.Error("reconciler mark missed", "error", err)
	}
	for _, id := range missed {
		r.timers.Clear(id)
	}
	if len(missed) > 0 {
		metrics.SchedulesMissedTotal.Add(float64(len(missed)))
		r.logger.Warn("marked overdue schedules missed", "count", len(missed))
	}

	metrics.TimersArmed.Set(float64(len(r.timers.ListAll())))
}
