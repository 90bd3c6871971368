package dates

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrNoDate means there was nothing to parse.
var ErrNoDate = errors.New("no date input")

type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse date %q: %s", e.Input, e.Reason)
}

// Input is one raw date fragment together with whatever the descriptor
// offers for recovering from it.
type Input struct {
	Raw    string
	Layout string // strftime pattern or Go layout, optional

	Day   string
	Month string
	Year  string
}

func (in Input) IsEmpty() bool {
	return clean(in.Raw) == "" && in.fallbackText() == ""
}

// fallbackText joins the day/month/year texts. A lone year completes the raw
// fragment instead.
func (in Input) fallbackText() string {
	day, month, year := clean(in.Day), clean(in.Month), clean(in.Year)
	if day == "" && month == "" {
		if year != "" && clean(in.Raw) != "" {
			return clean(in.Raw) + " " + year
		}
		return ""
	}
	return strings.Join(nonEmpty(day, month, year), " ")
}

// Fixed unambiguous formats, day-first for the numeric European forms.
var fixedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006",
	"2-1-06",
}

type Normalizer struct {
	Location *time.Location
	Now      func() time.Time
}

func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{Location: loc, Now: time.Now}
}

// In returns a copy of the normalizer that resolves zone-less dates in loc.
func (n *Normalizer) In(loc *time.Location) *Normalizer {
	if loc == nil {
		return n
	}
	c := *n
	c.Location = loc
	return &c
}

func (n *Normalizer) Normalize(in Input) (time.Time, error) {
	raw := clean(in.Raw)
	if raw == "" && in.fallbackText() == "" {
		return time.Time{}, ErrNoDate
	}

	if raw != "" {
		if in.Layout != "" {
			t, err := n.parseExplicit(raw, in.Layout)
			if err == nil {
				return t, nil
			}
			slog.Debug("Explicit date format did not match", "input", raw, "format", in.Layout, "error", err)
		}

		if t, ok := n.parseFixed(raw); ok {
			return t, nil
		}

		if t, err := n.parseNatural(raw, false); err == nil {
			return t, nil
		}
	}

	if fallback := in.fallbackText(); fallback != "" {
		if t, err := n.parseNatural(fallback, true); err == nil {
			return t, nil
		}
		if raw == "" {
			return time.Time{}, &ParseError{Input: fallback, Reason: "no strategy matched"}
		}
	}

	// Day and month alone fall in the current year.
	if t, err := n.parseNatural(raw, true); err == nil {
		return t, nil
	}

	return time.Time{}, &ParseError{Input: raw, Reason: "no strategy matched"}
}

func (n *Normalizer) parseExplicit(raw, format string) (time.Time, error) {
	layout := format
	if strings.Contains(format, "%") {
		var err error
		layout, err = StrftimeToLayout(format)
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.ParseInLocation(layout, raw, n.location())
}

func (n *Normalizer) parseFixed(raw string) (time.Time, bool) {
	for _, layout := range fixedLayouts {
		if t, err := time.ParseInLocation(layout, raw, n.location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (n *Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.UTC
	}
	return n.Location
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now().In(n.location())
	}
	return n.Now().In(n.location())
}

// clean collapses whitespace, including non-breaking spaces.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
