package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Dutch and English month names and abbreviations, mapped to English.
var monthNames = map[string]string{
	"januari": "january", "jan": "january", "january": "january",
	"februari": "february", "feb": "february", "february": "february",
	"maart": "march", "mrt": "march", "mar": "march", "march": "march",
	"april": "april", "apr": "april",
	"mei": "may", "may": "may",
	"juni": "june", "jun": "june", "june": "june",
	"juli": "july", "jul": "july", "july": "july",
	"augustus": "august", "aug": "august", "august": "august",
	"september": "september", "sep": "september", "sept": "september",
	"oktober": "october", "okt": "october", "oct": "october", "october": "october",
	"november": "november", "nov": "november",
	"december": "december", "dec": "december",
}

// Words that carry no date information and confuse the parser.
var noiseWords = map[string]bool{
	"maandag": true, "dinsdag": true, "woensdag": true, "donderdag": true,
	"vrijdag": true, "zaterdag": true, "zondag": true,
	"ma": true, "di": true, "wo": true, "do": true, "vr": true, "za": true, "zo": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"mon": true, "tue": true, "tues": true, "wed": true, "thu": true, "thur": true,
	"thurs": true, "fri": true, "sat": true, "sun": true,
	"op": true, "om": true, "uur": true, "van": true, "de": true, "het": true,
	"gepubliceerd": true, "geplaatst": true, "datum": true,
	"on": true, "at": true, "the": true, "of": true, "published": true, "posted": true,
}

var relativeDays = map[string]int{
	"nu": 0, "now": 0, "vandaag": 0, "today": 0,
	"gisteren": -1, "yesterday": -1,
	"eergisteren": -2,
	"morgen":      1, "tomorrow": 1,
}

var relativeUnits = map[string]string{
	"minuut": "minute", "minuten": "minute", "min": "minute", "minute": "minute", "minutes": "minute",
	"uur": "hour", "uren": "hour", "hour": "hour", "hours": "hour",
	"dag": "day", "dagen": "day", "day": "day", "days": "day",
	"week": "week", "weken": "week", "weeks": "week",
	"maand": "month", "maanden": "month", "month": "month", "months": "month",
	"jaar": "year", "jaren": "year", "year": "year", "years": "year",
}

var (
	relativePattern = regexp.MustCompile(`^(\d+|een|a|an|one)\s+([a-z]+)\s+(geleden|ago)$`)
	ordinalPattern  = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th|e|ste|de)\b`)
	wordPattern     = regexp.MustCompile(`[a-z]+\.?`)
	dayMonthPattern = regexp.MustCompile(`^(\d{1,2} [A-Z][a-z]+|[A-Z][a-z]+ \d{1,2})$`)
	digitPattern    = regexp.MustCompile(`\d`)
)

// Day-first layouts for translated month-name dates, tried before dateparse.
var naturalLayouts = []string{
	"2 January 2006 15:04:05",
	"2 January 2006 15:04",
	"2 January 2006, 15:04",
	"2 January 2006",
	"January 2, 2006 15:04",
	"January 2, 2006",
}

// parseNatural handles month names and relative phrases. Day and month
// without a year only parse when completeYear is set.
func (n *Normalizer) parseNatural(raw string, completeYear bool) (time.Time, error) {
	text := fold(raw)

	if t, ok := n.parseRelative(text); ok {
		return t, nil
	}

	text = translate(text)
	if !digitPattern.MatchString(text) {
		return time.Time{}, &ParseError{Input: raw, Reason: "no date fields"}
	}
	if dayMonthPattern.MatchString(text) {
		if !completeYear {
			return time.Time{}, &ParseError{Input: raw, Reason: "no year"}
		}
		if unicode.IsDigit(rune(text[0])) {
			text = fmt.Sprintf("%s %d", text, n.now().Year())
		} else {
			text = fmt.Sprintf("%s, %d", text, n.now().Year())
		}
	}

	for _, layout := range naturalLayouts {
		if t, err := time.ParseInLocation(layout, text, n.location()); err == nil {
			return t, nil
		}
	}

	t, err := parseIn(text, n.location())
	if err != nil {
		return time.Time{}, &ParseError{Input: raw, Reason: err.Error()}
	}
	return t, nil
}

func (n *Normalizer) parseRelative(text string) (time.Time, bool) {
	now := n.now()

	if days, ok := relativeDays[strings.Trim(text, ".,")]; ok {
		return now.AddDate(0, 0, days), true
	}

	m := relativePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	count := 1
	if c, err := strconv.Atoi(m[1]); err == nil {
		count = c
	}

	switch relativeUnits[m[2]] {
	case "minute":
		return now.Add(-time.Duration(count) * time.Minute), true
	case "hour":
		return now.Add(-time.Duration(count) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, -count), true
	case "week":
		return now.AddDate(0, 0, -7*count), true
	case "month":
		return now.AddDate(0, -count, 0), true
	case "year":
		return now.AddDate(-count, 0, 0), true
	}
	return time.Time{}, false
}

// translate drops noise words and rewrites month names to title-cased English.
func translate(text string) string {
	text = ordinalPattern.ReplaceAllString(text, "$1")

	titler := cases.Title(language.English)
	text = wordPattern.ReplaceAllStringFunc(text, func(word string) string {
		bare := strings.TrimSuffix(word, ".")
		if month, ok := monthNames[bare]; ok {
			return titler.String(month)
		}
		if noiseWords[bare] {
			return ""
		}
		return word
	})

	text = strings.Join(strings.Fields(text), " ")
	return strings.Trim(text, " ,.-|")
}

// fold lower-cases and strips diacritics.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return clean(cases.Lower(language.Dutch).String(out))
}

// parseIn guards against dateparse panicking on some malformed input.
// Ambiguous numeric dates are read day first.
func parseIn(text string, loc *time.Location) (t time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unparseable: %v", r)
		}
	}()
	return dateparse.ParseIn(text, loc, dateparse.PreferMonthFirst(false))
}
