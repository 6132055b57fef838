package domain

import (
	"errors"
	"time"
)

var (
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrDuplicateSchedule = errors.New("schedule with this ID already exists")
	ErrInvalidParameters = errors.New("invalid schedule parameters")
	ErrScheduleBusy      = errors.New("schedule is currently being processed")
	ErrAlreadyProcessing = errors.New("schedule is already processing")
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
	StatusMissed    Status = "missed"
	StatusError     Status = "error"
)

// Outcome is what a trigger run reports back to its caller. It extends Status
// with "processing", which is returned by the re-entrancy guard but never
// persisted.
type Outcome string

const (
	OutcomeProcessing Outcome = "processing"
	OutcomeSent       Outcome = "sent"
	OutcomeError      Outcome = "error"
)

// Error codes reported to the backend when a trigger terminates.
const (
	CodeEmptyBody              = "EMPTY_BODY"
	CodeCantPost               = "CANT_POST_ERROR"
	CodeFailedToPrepare        = "FAILED_TO_PREPARE_ATTACHMENTS"
	CodeFailedToPostToSubstack = "FAILED_TO_POST_TO_SUBSTACK"
	CodeFailedToCreateNote     = "FAILED_TO_CREATE_NOTE"
	CodeGeneralError           = "GENERAL_ERROR"
)

// Schedule is one unit of deferred publish work. The schedule ID is assigned
// by the backend, never generated here.
type Schedule struct {
	ScheduleID     string
	UserID         string
	Timestamp      time.Time // intended fire time
	NoteID         *string
	SubstackNoteID *string // set only after a successful publish
	IsProcessing   bool
	Status         Status
	Error          *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Due reports whether the intended fire time has passed.
func (s *Schedule) Due(now time.Time) bool {
	return !s.Timestamp.After(now)
}
