package selector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/html-comb/app/dates"
	"github.com/lysyi3m/html-comb/app/descriptor"
)

// Element is one candidate item on a listing page.
type Element struct {
	sel *goquery.Selection
}

// Text returns the value of the first selector whose match yields non-empty
// text, or the attribute value for css@attr selectors.
func (e *Element) Text(field string, spec descriptor.SelectorSpec) (string, error) {
	for _, s := range spec {
		m := matcherOf(s)
		if m == nil {
			continue
		}

		var value string
		e.sel.FindMatcher(m).EachWithBreak(func(_ int, match *goquery.Selection) bool {
			value = valueOf(match, s.Attr)
			return value == ""
		})
		if value != "" {
			return value, nil
		}
	}

	return "", &ParseError{Field: field, Selectors: spec.Strings(), Err: ErrNoMatch}
}

// Link returns the item link and the text of the element it came from. Without
// a matching link selector the first a[href] of the candidate is used, or the
// candidate itself when it is an anchor.
func (e *Element) Link(spec descriptor.SelectorSpec, base string, resolve bool) (string, string, error) {
	href, text := e.findLink(spec)
	if href == "" {
		return "", "", &ParseError{Field: descriptor.FieldLink, Selectors: spec.Strings(), Err: ErrNoMatch}
	}

	if !resolve {
		return href, text, nil
	}

	resolved, err := ResolveURL(base, href)
	if err != nil {
		return "", text, &ParseError{Field: descriptor.FieldLink, Selectors: spec.Strings(), Err: err}
	}
	return resolved, text, nil
}

func (e *Element) findLink(spec descriptor.SelectorSpec) (string, string) {
	for _, s := range spec {
		m := matcherOf(s)
		if m == nil {
			continue
		}

		var href, text string
		e.sel.FindMatcher(m).EachWithBreak(func(_ int, match *goquery.Selection) bool {
			href = usableHref(match.AttrOr(attrOrHref(s.Attr), ""))
			text = collapse(match.Text())
			return href == ""
		})
		if href != "" {
			return href, text
		}
	}

	if goquery.NodeName(e.sel) == "a" {
		if href := usableHref(e.sel.AttrOr("href", "")); href != "" {
			return href, collapse(e.sel.Text())
		}
	}

	anchor := e.sel.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return usableHref(a.AttrOr("href", "")) != ""
	}).First()
	if anchor.Length() == 0 {
		return "", ""
	}
	return usableHref(anchor.AttrOr("href", "")), collapse(anchor.Text())
}

// DateInput collects the raw date fragment and its fallback texts. An
// attribute selector whose attribute is missing falls back to the element text.
func (e *Element) DateInput(spec descriptor.SelectorSpec, fallback descriptor.DateFallback, layout string) dates.Input {
	in := dates.Input{Layout: layout}

	for _, s := range spec {
		m := matcherOf(s)
		if m == nil {
			continue
		}

		match := e.sel.FindMatcher(m).First()
		if match.Length() == 0 {
			continue
		}

		raw := valueOf(match, s.Attr)
		if raw == "" && s.Attr != "" {
			raw = collapse(match.Text())
		}
		if raw != "" {
			in.Raw = raw
			break
		}
	}

	if !fallback.IsZero() {
		in.Day, _ = e.Text("date_fallback.day", fallback.Day)
		in.Month, _ = e.Text("date_fallback.month", fallback.Month)
		in.Year, _ = e.Text("date_fallback.year", fallback.Year)
	}

	return in
}

func valueOf(match *goquery.Selection, attr string) string {
	if attr == "" {
		return collapse(match.Text())
	}
	value, ok := match.Attr(attr)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func usableHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	return href
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
