package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/writestack/noteflow/internal/substack"
)

// NotePoster is the slice of the platform client the API strategy needs.
type NotePoster interface {
	PostNote(ctx context.Context, bodyJSON json.RawMessage, attachmentIDs []string) (*substack.PostedNote, error)
}

// APIPublisher posts straight to the platform's feed endpoint. Success is a
// 2xx response with a parseable note ID, so this strategy confirms.
type APIPublisher struct {
	poster NotePoster
	logger *slog.Logger
}

func NewAPIPublisher(poster NotePoster, logger *slog.Logger) *APIPublisher {
	return &APIPublisher{poster: poster, logger: logger.With("component", "api_publisher")}
}

func (p *APIPublisher) Publish(ctx context.Context, content Content) (Result, error) {
	note, err := p.poster.PostNote(ctx, content.BodyJSON, content.AttachmentIDs)
	if err != nil {
		var statusErr *substack.StatusError
		if errors.As(err, &statusErr) {
			// The platform answered and said no — a clean failure, not an
			// exception.
			p.logger.WarnContext(ctx, "platform rejected note", "status", statusErr.Code)
			return Result{State: StateFailed, Detail: statusErr.Error()}, nil
		}
		return Result{}, err
	}

	return Result{State: StateConfirmed, NoteID: note.ID.String()}, nil
}
