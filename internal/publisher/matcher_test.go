package publisher_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/writestack/noteflow/internal/publisher"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return d
}

func TestByStableSelector_PicksFirstPresentSelector(t *testing.T) {
	d := doc(t, `<div><button data-testid="publish">Post</button></div>`)

	m := publisher.ByStableSelector{Selectors: []string{
		`[data-testid="compose"]`, // absent
		`[data-testid="publish"]`,
	}}

	target, ok := m.Match(d)
	if !ok {
		t.Fatal("no match")
	}
	if target.Selector != `[data-testid="publish"]` {
		t.Errorf("selector = %q", target.Selector)
	}
}

func TestByStableSelector_NoSelectorPresent(t *testing.T) {
	d := doc(t, `<div><span>nothing clickable</span></div>`)

	m := publisher.ByStableSelector{Selectors: []string{`[data-testid="publish"]`}}
	if _, ok := m.Match(d); ok {
		t.Error("matched against markup without the selector")
	}
}

func TestByVisibleText_ExactCaseFoldedMatch(t *testing.T) {
	d := doc(t, `
		<button> Cancel </button>
		<button>  POST  </button>`)

	m := publisher.ByVisibleText{Selector: "button", Texts: []string{"post"}}

	target, ok := m.Match(d)
	if !ok {
		t.Fatal("no match")
	}
	if target.Index != 1 {
		t.Errorf("index = %d, want 1", target.Index)
	}
	if target.Text != "post" {
		t.Errorf("text = %q, want the folded match", target.Text)
	}
}

func TestByVisibleText_SubstringIsNotEnough(t *testing.T) {
	d := doc(t, `<button>Post later</button>`)

	m := publisher.ByVisibleText{Selector: "button", Texts: []string{"post"}}
	if _, ok := m.Match(d); ok {
		t.Error("matched a substring; exact text is required")
	}
}

func TestByRoleHeuristic_MatchesAriaLabel(t *testing.T) {
	d := doc(t, `
		<a href="/settings">Settings</a>
		<div role="button" aria-label="Publish note"></div>`)

	m := publisher.ByRoleHeuristic{Keywords: []string{"publish"}}

	target, ok := m.Match(d)
	if !ok {
		t.Fatal("no match")
	}
	if target.Index != 1 {
		t.Errorf("index = %d, want the role=button element", target.Index)
	}
}

func TestFirstMatch_HonorsCascadeOrder(t *testing.T) {
	// Markup where the stable selector and the text matcher would both hit.
	d := doc(t, `<button data-testid="publish">Post</button>`)

	cascade := []publisher.Matcher{
		publisher.ByStableSelector{Selectors: []string{`[data-testid="publish"]`}},
		publisher.ByVisibleText{Selector: "button", Texts: []string{"post"}},
	}

	_, name, ok := publisher.FirstMatch(d, cascade)
	if !ok {
		t.Fatal("no match")
	}
	if name != "stable_selector" {
		t.Errorf("matched via %q, want the stable selector to win", name)
	}
}

func TestFirstMatch_FallsThroughToHeuristic(t *testing.T) {
	// No test IDs, no exact text; only the loose heuristic can hit.
	d := doc(t, `<a tabindex="0">Publish your note now</a>`)

	cascade := []publisher.Matcher{
		publisher.ByStableSelector{Selectors: []string{`[data-testid="publish"]`}},
		publisher.ByVisibleText{Selector: "button", Texts: []string{"post"}},
		publisher.ByRoleHeuristic{Keywords: []string{"publish"}},
	}

	_, name, ok := publisher.FirstMatch(d, cascade)
	if !ok {
		t.Fatal("cascade produced no match")
	}
	if name != "role_heuristic" {
		t.Errorf("matched via %q, want role_heuristic", name)
	}
}

func TestFirstMatch_EmptyCascade(t *testing.T) {
	d := doc(t, `<button>Post</button>`)
	if _, _, ok := publisher.FirstMatch(d, nil); ok {
		t.Error("empty cascade reported a match")
	}
}
