package publisher

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Session is one hosted page the DOM strategy owns for the duration of a
// publish attempt. Commands resolve against the live DOM; HTML returns a
// snapshot for the matchers to inspect.
type Session interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, target Target) error
	InsertHTML(ctx context.Context, target Target, html string) error
	Close(ctx context.Context) error
}

// SessionOpener opens a fresh page session, typically over the browser bridge.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

const closeDelay = 10 * time.Second

// DOMPublisher drives the publish flow through real page interactions: find a
// compose affordance, inject the note HTML into the editor, click publish,
// and dismiss a confirmation dialog if one appears. Used when no API session
// cookie is available. It reports StateStarted on dispatch — the sequence has
// no synchronous way to observe whether the note actually landed.
type DOMPublisher struct {
	opener   SessionOpener
	logger   *slog.Logger
	siteURL  string
	settle   time.Duration
	keepOpen bool

	compose []Matcher
	editor  []Matcher
	publish []Matcher
	confirm []Matcher
}

func NewDOMPublisher(opener SessionOpener, siteURL string, settle time.Duration, keepOpen bool, logger *slog.Logger) *DOMPublisher {
	return &DOMPublisher{
		opener:   opener,
		logger:   logger.With("component", "dom_publisher"),
		siteURL:  siteURL,
		settle:   settle,
		keepOpen: keepOpen,
		compose: []Matcher{
			ByStableSelector{Selectors: []string{
				`button[data-testid="feed-composer-trigger"]`,
				`div.pencil-button`,
			}},
			ByVisibleText{Selector: "button, a", Texts: []string{"what's on your mind?", "new note", "create note"}},
			ByRoleHeuristic{Keywords: []string{"note", "compose", "write"}},
		},
		editor: []Matcher{
			ByStableSelector{Selectors: []string{
				`div[data-testid="composer-editor"] [contenteditable="true"]`,
				`div.ProseMirror[contenteditable="true"]`,
				`[contenteditable="true"]`,
			}},
			ByRoleHeuristic{Keywords: []string{"editor"}},
		},
		publish: []Matcher{
			ByStableSelector{Selectors: []string{
				`button[data-testid="composer-publish-button"]`,
			}},
			ByVisibleText{Selector: "button", Texts: []string{"post", "publish"}},
			ByRoleHeuristic{Keywords: []string{"post", "publish", "send"}},
		},
		confirm: []Matcher{
			ByStableSelector{Selectors: []string{
				`div[role="dialog"] button[data-testid="confirm"]`,
			}},
			ByVisibleText{Selector: `div[role="dialog"] button`, Texts: []string{"post", "yes, post", "confirm"}},
		},
	}
}

func (p *DOMPublisher) Publish(ctx context.Context, content Content) (Result, error) {
	sess, err := p.opener.Open(ctx)
	if err != nil {
		return Result{}, err
	}
	defer p.scheduleClose(sess)

	if err := sess.Navigate(ctx, p.siteURL+"/home"); err != nil {
		return Result{}, err
	}
	if err := p.wait(ctx); err != nil {
		return Result{}, err
	}

	doc, err := p.snapshot(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	if !loggedIn(doc) {
		return Result{State: StateFailed, Detail: "no logged-in session on the platform"}, nil
	}

	// Compose affordance
	if res, ok := p.locateAndClick(ctx, sess, doc, p.compose, "compose"); !ok {
		return res, nil
	}
	if err := p.wait(ctx); err != nil {
		return Result{}, err
	}

	// Editor surface
	doc, err = p.snapshot(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	target, via, ok := FirstMatch(doc, p.editor)
	if !ok {
		return Result{State: StateFailed, Detail: "editor surface not found"}, nil
	}
	p.logger.DebugContext(ctx, "editor located", "via", via)
	if err := sess.InsertHTML(ctx, target, content.BodyHTML); err != nil {
		return Result{}, err
	}

	// Publish control
	doc, err = p.snapshot(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	if res, ok := p.locateAndClick(ctx, sess, doc, p.publish, "publish"); !ok {
		return res, nil
	}
	if err := p.wait(ctx); err != nil {
		return Result{}, err
	}

	// Confirmation dialog — optional, its absence is normal.
	doc, err = p.snapshot(ctx, sess)
	if err == nil {
		if target, via, ok := FirstMatch(doc, p.confirm); ok {
			p.logger.DebugContext(ctx, "confirm dialog located", "via", via)
			if err := sess.Click(ctx, target); err != nil {
				p.logger.WarnContext(ctx, "confirm click failed", "error", err)
			}
		}
	}

	return Result{State: StateStarted, Detail: "publish sequence dispatched"}, nil
}

func (p *DOMPublisher) locateAndClick(ctx context.Context, sess Session, doc *goquery.Document, matchers []Matcher, stage string) (Result, bool) {
	target, via, ok := FirstMatch(doc, matchers)
	if !ok {
		return Result{State: StateFailed, Detail: stage + " control not found"}, false
	}
	p.logger.DebugContext(ctx, "control located", "stage", stage, "via", via)
	if err := sess.Click(ctx, target); err != nil {
		return Result{State: StateFailed, Detail: stage + " click failed: " + err.Error()}, false
	}
	return Result{}, true
}

func (p *DOMPublisher) snapshot(ctx context.Context, sess Session) (*goquery.Document, error) {
	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// wait pauses for the settle delay. A fixed sleep stands in for readiness
// detection; the page offers no load signal the bridge can surface.
func (p *DOMPublisher) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.settle):
		return nil
	}
}

func (p *DOMPublisher) scheduleClose(sess Session) {
	if p.keepOpen {
		return
	}
	time.AfterFunc(closeDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sess.Close(ctx); err != nil {
			p.logger.Warn("close page session", "error", err)
		}
	})
}

func loggedIn(doc *goquery.Document) bool {
	if doc.Find(`[data-testid="user-menu"], img.user-avatar, a[href*="/settings"]`).Length() > 0 {
		return true
	}
	// A sign-in link on the landing page means no session.
	return doc.Find(`a[href*="/sign-in"], button[data-testid="sign-in"]`).Length() == 0 &&
		doc.Find(`[contenteditable="true"]`).Length() > 0
}
