// Package browser implements the page session used by the DOM publish
// strategy. A thin helper running next to the user's browser exposes one
// websocket endpoint; each session maps to a hosted tab the helper opens on
// our behalf. Commands are single JSON request/reply exchanges.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/writestack/noteflow/internal/publisher"
)

type command struct {
	Op     string            `json:"op"`
	URL    string            `json:"url,omitempty"`
	Target *publisher.Target `json:"target,omitempty"`
	HTML   string            `json:"html,omitempty"`
}

type reply struct {
	OK    bool   `json:"ok"`
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// Bridge dials the helper endpoint and opens page sessions.
type Bridge struct {
	url    string
	logger *slog.Logger
}

func NewBridge(url string, logger *slog.Logger) *Bridge {
	return &Bridge{url: url, logger: logger.With("component", "bridge")}
}

// Open establishes a websocket connection and asks the helper to open a tab.
func (b *Bridge) Open(ctx context.Context) (publisher.Session, error) {
	conn, _, err := websocket.Dial(ctx, b.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge: %w", err)
	}
	conn.SetReadLimit(16 << 20) // page snapshots are large

	s := &session{conn: conn, logger: b.logger}
	if _, err := s.roundTrip(ctx, command{Op: "open"}); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "open failed")
		return nil, err
	}
	return s, nil
}

// session is one remote tab. The protocol is strictly request/reply, so a
// mutex serializes commands on the shared connection.
type session struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *slog.Logger
}

func (s *session) Navigate(ctx context.Context, url string) error {
	_, err := s.roundTrip(ctx, command{Op: "navigate", URL: url})
	return err
}

func (s *session) HTML(ctx context.Context) (string, error) {
	r, err := s.roundTrip(ctx, command{Op: "html"})
	if err != nil {
		return "", err
	}
	return r.HTML, nil
}

func (s *session) Click(ctx context.Context, target publisher.Target) error {
	_, err := s.roundTrip(ctx, command{Op: "click", Target: &target})
	return err
}

func (s *session) InsertHTML(ctx context.Context, target publisher.Target, html string) error {
	_, err := s.roundTrip(ctx, command{Op: "insert", Target: &target, HTML: html})
	return err
}

func (s *session) Close(ctx context.Context) error {
	_, err := s.roundTrip(ctx, command{Op: "close"})
	closeErr := s.conn.Close(websocket.StatusNormalClosure, "session done")
	if err != nil {
		return err
	}
	return closeErr
}

func (s *session) roundTrip(ctx context.Context, cmd command) (reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := wsjson.Write(ctx, s.conn, cmd); err != nil {
		return reply{}, fmt.Errorf("bridge %s: write: %w", cmd.Op, err)
	}

	var r reply
	if err := wsjson.Read(ctx, s.conn, &r); err != nil {
		return reply{}, fmt.Errorf("bridge %s: read: %w", cmd.Op, err)
	}
	if !r.OK {
		return reply{}, fmt.Errorf("bridge %s: %s", cmd.Op, r.Error)
	}
	return r, nil
}
