package publisher

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Target tells the page session how to resolve an element: the Index-th match
// of Selector, optionally validated against visible Text. Resolution happens
// page-side against the live DOM; the snapshot the matcher saw may already be
// stale by then, which is why Text travels along as a cross-check.
type Target struct {
	Selector string `json:"selector"`
	Text     string `json:"text,omitempty"`
	Index    int    `json:"index"`
}

// Matcher locates an element in a DOM snapshot. The target site's markup is
// not under our control and drifts, so matchers are tried as an ordered
// cascade — stable selectors first, looser heuristics after — stopping at the
// first success. A tolerance mechanism, not a correctness guarantee.
type Matcher interface {
	Name() string
	Match(doc *goquery.Document) (Target, bool)
}

// FirstMatch runs the cascade and returns the first hit along with the name
// of the matcher that produced it.
func FirstMatch(doc *goquery.Document, matchers []Matcher) (Target, string, bool) {
	for _, m := range matchers {
		if t, ok := m.Match(doc); ok {
			return t, m.Name(), true
		}
	}
	return Target{}, "", false
}

// ByStableSelector tries known selectors in order and targets the first one
// present in the snapshot.
type ByStableSelector struct {
	Selectors []string
}

func (m ByStableSelector) Name() string { return "stable_selector" }

func (m ByStableSelector) Match(doc *goquery.Document) (Target, bool) {
	for _, sel := range m.Selectors {
		if doc.Find(sel).Length() > 0 {
			return Target{Selector: sel}, true
		}
	}
	return Target{}, false
}

// ByVisibleText scans elements matching Selector for an exact (case-folded,
// trimmed) text match against any of Texts.
type ByVisibleText struct {
	Selector string
	Texts    []string
}

func (m ByVisibleText) Name() string { return "visible_text" }

func (m ByVisibleText) Match(doc *goquery.Document) (Target, bool) {
	var target Target
	found := false
	doc.Find(m.Selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		for _, want := range m.Texts {
			if text == strings.ToLower(want) {
				target = Target{Selector: m.Selector, Text: text, Index: i}
				found = true
				return false
			}
		}
		return true
	})
	return target, found
}

// ByRoleHeuristic is the loosest fallback: any clickable-looking element
// whose text or aria-label contains one of the keywords.
type ByRoleHeuristic struct {
	Keywords []string
}

const clickableSelector = `button, a, [role="button"], [tabindex]`

func (m ByRoleHeuristic) Name() string { return "role_heuristic" }

func (m ByRoleHeuristic) Match(doc *goquery.Document) (Target, bool) {
	var target Target
	found := false
	doc.Find(clickableSelector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		label, _ := sel.Attr("aria-label")
		text := strings.ToLower(strings.TrimSpace(sel.Text() + " " + label))
		for _, kw := range m.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				target = Target{Selector: clickableSelector, Text: strings.TrimSpace(sel.Text()), Index: i}
				found = true
				return false
			}
		}
		return true
	})
	return target, found
}
