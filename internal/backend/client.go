// Package backend talks to the companion WriteStack backend: it fetches the
// authoritative note content for a schedule and reports trigger outcomes.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/writestack/noteflow/internal/domain"
)

type Client struct {
	baseURL string
	cookie  string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, sessionCookie string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		cookie:  sessionCookie,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With("component", "backend"),
	}
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type contentPayload struct {
	JSONBody       json.RawMessage `json:"jsonBody"`
	HTMLBody       string          `json:"htmlBody"`
	AttachmentURLs []string        `json:"attachmentUrls"`
}

// FetchContent retrieves the note content for a schedule. Any transport error
// or non-success response yields nil — the caller treats nil as "cannot
// proceed" and classifies it, so nothing is returned as a Go error here.
func (c *Client) FetchContent(ctx context.Context, scheduleID string) *domain.NoteContent {
	var env envelope
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/extension/schedule/%s", scheduleID), nil, &env)
	if err != nil {
		c.logger.ErrorContext(ctx, "fetch schedule content", "error", err)
		return nil
	}
	if !env.Success {
		c.logger.ErrorContext(ctx, "fetch schedule content rejected", "backend_error", env.Error)
		return nil
	}

	var payload contentPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		c.logger.ErrorContext(ctx, "decode schedule content", "error", err)
		return nil
	}
	return &domain.NoteContent{
		BodyJSON:       payload.JSONBody,
		BodyHTML:       payload.HTMLBody,
		AttachmentURLs: payload.AttachmentURLs,
	}
}

// CanPost asks the backend whether the scheduled note may still be published.
func (c *Client) CanPost(ctx context.Context, scheduleID string) bool {
	var env envelope
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/extension/schedule/%s/can-post", scheduleID), nil, &env)
	if err != nil {
		c.logger.ErrorContext(ctx, "can-post check", "error", err)
		return false
	}
	if !env.Success {
		c.logger.ErrorContext(ctx, "can-post check rejected", "backend_error", env.Error)
		return false
	}

	var payload struct {
		CanPost bool `json:"canPost"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		c.logger.ErrorContext(ctx, "decode can-post response", "error", err)
		return false
	}
	return payload.CanPost
}

type triggeredRequest struct {
	OK             bool    `json:"ok"`
	SubstackNoteID *string `json:"substackNoteId,omitempty"`
	Error          string  `json:"error,omitempty"`
	Text           string  `json:"text,omitempty"`
}

// ReportOutcome notifies the backend of a trigger's terminal result. Failures
// are logged, never propagated: the local store stays the source of truth for
// pending work regardless of whether the backend acknowledged.
func (c *Client) ReportOutcome(ctx context.Context, s *domain.Schedule, ok bool, errorCode, errorDetail string) {
	body := triggeredRequest{
		OK:             ok,
		SubstackNoteID: s.SubstackNoteID,
	}
	if !ok && errorCode != "" {
		body.Error = errorCode
		body.Text = errorDetail
	}

	var env envelope
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/extension/schedule/%s/triggered", s.ScheduleID), body, &env)
	if err != nil {
		c.logger.ErrorContext(ctx, "report trigger outcome", "error", err)
		return
	}
	if !env.Success {
		c.logger.ErrorContext(ctx, "report trigger outcome rejected", "backend_error", env.Error)
	}
}

// FetchNotes retrieves display records for the given schedule IDs.
func (c *Client) FetchNotes(ctx context.Context, scheduleIDs []string) ([]domain.Note, error) {
	if len(scheduleIDs) == 0 {
		return []domain.Note{}, nil
	}

	body := struct {
		ScheduleIDs []string `json:"scheduleIds"`
	}{ScheduleIDs: scheduleIDs}

	var env envelope
	if err := c.do(ctx, http.MethodPost, "/api/v1/extension/schedules", body, &env); err != nil {
		return nil, fmt.Errorf("fetch notes: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("fetch notes: backend error: %s", env.Error)
	}

	var notes []domain.Note
	if err := json.Unmarshal(env.Data, &notes); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	return notes, nil
}

// Ping reports backend reachability for the health checker. Any HTTP response
// counts as reachable; only transport failures are errors.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/extension/schedules", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cookie", c.cookie)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out *envelope) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", c.cookie)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
