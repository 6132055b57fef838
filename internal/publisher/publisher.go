// Package publisher posts assembled note content to the target platform.
// Two interchangeable strategies exist: a direct API call and a DOM-automation
// sequence driven through a hosted page session.
package publisher

import (
	"context"
	"encoding/json"
)

// State is the tri-state outcome of a publish attempt. The DOM strategy can
// only ever report "started" — it kicks off a click sequence without a
// synchronous confirmation channel — while the API strategy reports
// "confirmed" with the platform-assigned note ID.
type State string

const (
	StateStarted   State = "started"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Content is the assembled note ready for publishing.
type Content struct {
	BodyJSON      json.RawMessage
	BodyHTML      string
	AttachmentIDs []string
}

// Result describes how a publish attempt ended. NoteID is set only when
// State is StateConfirmed.
type Result struct {
	State  State
	NoteID string
	Detail string
}

// Failed reports whether the attempt cleanly did not publish.
func (r Result) Failed() bool { return r.State == StateFailed }

// Publisher is the single capability both strategies implement. A non-nil
// error means the attempt blew up mid-flight; a StateFailed result means the
// strategy ran to completion and cleanly reports that nothing was published.
type Publisher interface {
	Publish(ctx context.Context, content Content) (Result, error)
}
