// Package substack is the client for the target platform's note and media
// endpoints. Requests carry the user's session cookie; the platform has no
// official API, so the request shapes mirror what its own web client sends.
package substack

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/writestack/noteflow/internal/domain"
)

type Client struct {
	baseURL string
	cookie  string
	client  *http.Client
}

func NewClient(baseURL, sessionCookie string) *Client {
	return &Client{
		baseURL: baseURL,
		cookie:  sessionCookie,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// StatusError is returned when the platform answers with a non-2xx status.
// Callers use it to tell a clean rejection apart from a transport failure.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("substack returned %d: %s", e.Code, e.Body)
}

type noteRequest struct {
	BodyJSON      json.RawMessage `json:"bodyJson"`
	AttachmentIDs []string        `json:"attachmentIds,omitempty"`
}

// PostedNote is the platform's record of a created note.
type PostedNote struct {
	ID json.Number `json:"id"`
}

// PostNote publishes a note to the feed and returns the platform-assigned ID.
func (c *Client) PostNote(ctx context.Context, bodyJSON json.RawMessage, attachmentIDs []string) (*PostedNote, error) {
	raw, err := c.post(ctx, "/api/v1/comment/feed", noteRequest{
		BodyJSON:      bodyJSON,
		AttachmentIDs: attachmentIDs,
	})
	if err != nil {
		return nil, err
	}

	var note PostedNote
	if err := json.Unmarshal(raw, &note); err != nil {
		return nil, fmt.Errorf("decode note response: %w", err)
	}
	if note.ID == "" {
		return nil, fmt.Errorf("note response missing id")
	}
	return &note, nil
}

// UploadImage uploads raw image bytes as a data URI and returns the hosted URL.
func (c *Client) UploadImage(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
	raw, err := c.post(ctx, "/api/v1/image", map[string]string{"image": dataURI})
	if err != nil {
		return "", err
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode image response: %w", err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("image response missing url")
	}
	return resp.URL, nil
}

// CreateAttachment exchanges a hosted image URL for an attachment handle that
// can be referenced from a note.
func (c *Client) CreateAttachment(ctx context.Context, imageURL string) (*domain.Attachment, error) {
	raw, err := c.post(ctx, "/api/v1/comment/attachment", map[string]string{
		"type": "image",
		"url":  imageURL,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID       string `json:"id"`
		ImageURL string `json:"imageUrl"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode attachment response: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("attachment response missing id")
	}
	return &domain.Attachment{ID: resp.ID, URL: resp.ImageURL}, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", c.baseURL+"/home")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Cookie", c.cookie)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(raw, 256)}
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
