// Package trigger owns the schedule trigger state machine: it takes one armed
// schedule through fetch, attachment preparation, and publish to a terminal
// state, enforcing at-most-one concurrent execution per schedule ID.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/writestack/noteflow/internal/domain"
	"github.com/writestack/noteflow/internal/email"
	ctxlog "github.com/writestack/noteflow/internal/log"
	"github.com/writestack/noteflow/internal/metrics"
	"github.com/writestack/noteflow/internal/publisher"
	"github.com/writestack/noteflow/internal/repository"
)

// ContentFetcher is the backend surface the orchestrator depends on.
type ContentFetcher interface {
	FetchContent(ctx context.Context, scheduleID string) *domain.NoteContent
	CanPost(ctx context.Context, scheduleID string) bool
	ReportOutcome(ctx context.Context, s *domain.Schedule, ok bool, errorCode, errorDetail string)
}

// AttachmentPreparer produces platform attachment handles for media URLs.
type AttachmentPreparer interface {
	Prepare(ctx context.Context, urls []string) ([]domain.Attachment, error)
}

// TimerClearer cancels the one-shot timer entry for a schedule.
type TimerClearer interface {
	Clear(scheduleID string)
}

// Options tweak a single trigger run.
type Options struct {
	// SkipCanPostCheck bypasses the backend precondition. Set on the
	// user-initiated send-now path so manual retries always go through.
	SkipCanPostCheck bool
}

// Result is what one trigger run reports to its caller.
type Result struct {
	Outcome domain.Outcome
	Code    string // error code reported to the backend, empty on success
	Err     string // human-readable failure reason
}

type Orchestrator struct {
	repo      repository.ScheduleRepository
	fetcher   ContentFetcher
	preparer  AttachmentPreparer
	publisher publisher.Publisher
	timers    TimerClearer
	alerts    email.Sender
	alertTo   string
	logger    *slog.Logger
}

func New(
	repo repository.ScheduleRepository,
	fetcher ContentFetcher,
	preparer AttachmentPreparer,
	pub publisher.Publisher,
	timers TimerClearer,
	alerts email.Sender,
	alertTo string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		fetcher:   fetcher,
		preparer:  preparer,
		publisher: pub,
		timers:    timers,
		alerts:    alerts,
		alertTo:   alertTo,
		logger:    logger.With("component", "orchestrator"),
	}
}

// Trigger executes the full lifecycle for one schedule ID. It is safe to call
// re-entrantly: a second call while a run is in flight observes the
// processing claim and returns OutcomeProcessing without side effects.
func (o *Orchestrator) Trigger(ctx context.Context, scheduleID string, opts Options) Result {
	ctx = ctxlog.WithScheduleID(ctx, scheduleID)
	start := time.Now()

	s, err := o.repo.ClaimProcessing(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessing) || errors.Is(err, domain.ErrScheduleNotFound) {
			o.logger.InfoContext(ctx, "skipping trigger", "reason", err)
			metrics.TriggersTotal.WithLabelValues("skipped").Inc()
			return Result{Outcome: domain.OutcomeProcessing}
		}
		o.logger.ErrorContext(ctx, "claim schedule", "error", err)
		metrics.TriggersTotal.WithLabelValues("claim_error").Inc()
		return Result{Outcome: domain.OutcomeError, Err: err.Error()}
	}

	metrics.TriggersInFlight.Inc()
	res := o.run(ctx, s, opts)
	metrics.TriggersInFlight.Dec()

	metrics.TriggerDuration.WithLabelValues(string(res.Outcome)).Observe(time.Since(start).Seconds())

	switch res.Outcome {
	case domain.OutcomeSent:
		metrics.TriggersTotal.WithLabelValues("sent").Inc()
		o.timers.Clear(scheduleID)
		if err := o.repo.Delete(ctx, scheduleID); err != nil {
			o.logger.ErrorContext(ctx, "delete sent schedule", "error", err)
		}
		o.logger.InfoContext(ctx, "schedule sent", "duration", time.Since(start))
	case domain.OutcomeError:
		metrics.TriggersTotal.WithLabelValues(res.Code).Inc()
		o.timers.Clear(scheduleID)
		errMsg := res.Err
		if _, err := o.repo.UpdateStatus(ctx, scheduleID, domain.StatusError, &errMsg); err != nil {
			o.logger.ErrorContext(ctx, "persist error status", "error", err)
		}
		o.alert(ctx, s, res)
		o.logger.WarnContext(ctx, "schedule failed", "code", res.Code, "error", res.Err)
	}
	return res
}

// run performs steps 3–7 of the trigger algorithm and reports the outcome to
// the backend. The processing claim is always released, whichever path exits
// — otherwise a failed run would wedge the schedule forever.
func (o *Orchestrator) run(ctx context.Context, s *domain.Schedule, opts Options) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			detail := fmt.Sprint(r)
			o.logger.ErrorContext(ctx, "trigger panicked", "panic", detail)
			o.fetcher.ReportOutcome(ctx, s, false, domain.CodeGeneralError, detail)
			res = Result{Outcome: domain.OutcomeError, Code: domain.CodeGeneralError, Err: "unexpected error"}
		}
		if err := o.repo.ReleaseProcessing(ctx, s.ScheduleID); err != nil {
			o.logger.ErrorContext(ctx, "release processing claim", "error", err)
		}
	}()

	content := o.fetcher.FetchContent(ctx, s.ScheduleID)
	if content.Empty() {
		o.fetcher.ReportOutcome(ctx, s, false, domain.CodeEmptyBody, "")
		return Result{Outcome: domain.OutcomeError, Code: domain.CodeEmptyBody, Err: "the body of the note is empty"}
	}

	if !opts.SkipCanPostCheck && !o.fetcher.CanPost(ctx, s.ScheduleID) {
		o.fetcher.ReportOutcome(ctx, s, false, domain.CodeCantPost, "")
		return Result{Outcome: domain.OutcomeError, Code: domain.CodeCantPost, Err: "backend denied posting"}
	}

	var attachmentIDs []string
	if len(content.AttachmentURLs) > 0 {
		attachments, err := o.preparer.Prepare(ctx, content.AttachmentURLs)
		if err != nil {
			o.fetcher.ReportOutcome(ctx, s, false, domain.CodeFailedToPrepare, err.Error())
			return Result{Outcome: domain.OutcomeError, Code: domain.CodeFailedToPrepare, Err: "failed to upload attachments"}
		}
		for _, a := range attachments {
			attachmentIDs = append(attachmentIDs, a.ID)
		}
	}

	pubRes, err := o.publisher.Publish(ctx, publisher.Content{
		BodyJSON:      content.BodyJSON,
		BodyHTML:      content.BodyHTML,
		AttachmentIDs: attachmentIDs,
	})
	if err != nil {
		o.fetcher.ReportOutcome(ctx, s, false, domain.CodeFailedToCreateNote, err.Error())
		return Result{Outcome: domain.OutcomeError, Code: domain.CodeFailedToCreateNote, Err: "failed to post note"}
	}
	if pubRes.Failed() {
		o.fetcher.ReportOutcome(ctx, s, false, domain.CodeFailedToPostToSubstack, pubRes.Detail)
		return Result{Outcome: domain.OutcomeError, Code: domain.CodeFailedToPostToSubstack, Err: "failed to post note"}
	}

	if pubRes.NoteID != "" {
		s.SubstackNoteID = &pubRes.NoteID
		if err := o.repo.SetSubstackNoteID(ctx, s.ScheduleID, pubRes.NoteID); err != nil {
			o.logger.ErrorContext(ctx, "record platform note id", "error", err)
		}
	}
	o.fetcher.ReportOutcome(ctx, s, true, "", "")

	return Result{Outcome: domain.OutcomeSent}
}

func (o *Orchestrator) alert(ctx context.Context, s *domain.Schedule, res Result) {
	if o.alerts == nil || o.alertTo == "" {
		return
	}
	subject := fmt.Sprintf("Scheduled note %s failed (%s)", s.ScheduleID, res.Code)
	body := fmt.Sprintf(
		"<p>Schedule <b>%s</b> for user %s failed with code <b>%s</b>.</p><p>%s</p>",
		s.ScheduleID, s.UserID, res.Code, res.Err,
	)
	if err := o.alerts.Send(ctx, o.alertTo, subject, body); err != nil {
		o.logger.ErrorContext(ctx, "send failure alert", "error", err)
	}
}
