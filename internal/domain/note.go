package domain

import (
	"encoding/json"
	"time"
)

// NoteContent is the authoritative content of a scheduled note, fetched from
// the backend at trigger time. BodyJSON is the ProseMirror document posted to
// the feed endpoint; BodyHTML is the rendered fallback used by the DOM
// publish path.
type NoteContent struct {
	BodyJSON       json.RawMessage
	BodyHTML       string
	AttachmentURLs []string
}

// Empty reports whether the note has no usable body.
func (c *NoteContent) Empty() bool {
	return c == nil || (len(c.BodyJSON) == 0 || string(c.BodyJSON) == "null") && c.BodyHTML == ""
}

// Attachment is a platform-assigned handle for previously uploaded media.
// SourceURL is the URL the media was originally fetched from; callers use it
// to map partial preparation results back to the requested list.
type Attachment struct {
	ID        string
	URL       string
	SourceURL string
}

// Note is the backend's display record for a scheduled note, surfaced through
// the listing endpoint for UI clients.
type Note struct {
	ID          string     `json:"id"`
	ScheduleID  string     `json:"scheduleId"`
	Body        string     `json:"body"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	Status      Status     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
}
