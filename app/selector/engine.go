package selector

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/lysyi3m/html-comb/app/descriptor"
)

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Parse(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Items returns the union of all item selector matches in document order,
// each element at most once. max <= 0 means uncapped.
func (e *Engine) Items(doc *goquery.Document, spec descriptor.SelectorSpec, max int) []*Element {
	matchers := matchersOf(spec)
	if len(matchers) == 0 {
		return nil
	}

	union := cascadia.Selector(func(n *html.Node) bool {
		for _, m := range matchers {
			if m.Match(n) {
				return true
			}
		}
		return false
	})

	sel := doc.FindMatcher(union)
	count := sel.Length()
	if max > 0 && count > max {
		count = max
	}

	elements := make([]*Element, 0, count)
	for i := 0; i < count; i++ {
		elements = append(elements, &Element{sel: sel.Eq(i)})
	}

	return elements
}

// NextPage finds the pagination link of a listing page.
func (e *Engine) NextPage(doc *goquery.Document, spec descriptor.SelectorSpec, base string) (string, bool) {
	for _, s := range spec {
		m := matcherOf(s)
		if m == nil {
			continue
		}

		href, ok := doc.FindMatcher(m).First().Attr(attrOrHref(s.Attr))
		if !ok || href == "" {
			continue
		}

		next, err := ResolveURL(base, href)
		if err != nil {
			slog.Debug("Ignoring next page link", "href", href, "error", err)
			continue
		}
		return next, true
	}
	return "", false
}

func matchersOf(spec descriptor.SelectorSpec) []cascadia.Selector {
	matchers := make([]cascadia.Selector, 0, len(spec))
	for _, s := range spec {
		if m := matcherOf(s); m != nil {
			matchers = append(matchers, m)
		}
	}
	return matchers
}

// matcherOf returns the compiled matcher, compiling on the fly for selectors
// built outside the descriptor loader.
func matcherOf(s descriptor.Selector) cascadia.Selector {
	if s.Match != nil {
		return s.Match
	}
	m, err := cascadia.Compile(s.CSS)
	if err != nil {
		slog.Debug("Skipping invalid selector", "selector", s.CSS, "error", err)
		return nil
	}
	return m
}

func attrOrHref(attr string) string {
	if attr == "" {
		return "href"
	}
	return attr
}
