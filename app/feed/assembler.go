package feed

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/lysyi3m/html-comb/app/descriptor"
)

var canonicalFields = map[string]bool{
	descriptor.FieldTitle:    true,
	descriptor.FieldLink:     true,
	descriptor.FieldSummary:  true,
	descriptor.FieldCategory: true,
}

// Assembler maps raw per-element fields into canonical items.
type Assembler struct {
	fieldMap          map[string]string
	titleSuffixSource bool
}

// NewAssembler builds an assembler. fieldMap maps raw field names to canonical
// ones and extends the default mapping of description onto summary.
func NewAssembler(fieldMap map[string]string, titleSuffixSource bool) *Assembler {
	merged := map[string]string{
		descriptor.FieldDescription: descriptor.FieldSummary,
	}
	for raw, canonical := range fieldMap {
		merged[raw] = canonical
	}

	return &Assembler{
		fieldMap:          merged,
		titleSuffixSource: titleSuffixSource,
	}
}

// Run assembles one item. It reports false when the record has neither a
// link nor a title.
func (a *Assembler) Run(raw RawRecord, published *time.Time) (Item, bool) {
	values := a.mapFields(raw.Fields)

	item := Item{
		Title:      values[descriptor.FieldTitle],
		Link:       values[descriptor.FieldLink],
		Summary:    values[descriptor.FieldSummary],
		Category:   values[descriptor.FieldCategory],
		SourceName: raw.SourceName,
	}

	if item.Title == "" {
		item.Title = cleanText(raw.LinkText)
	}
	if item.Link == "" && item.Title == "" {
		return Item{}, false
	}
	if item.Summary == "" {
		item.Summary = item.Title
	}

	if a.titleSuffixSource && raw.SourceName != "" && item.Title != "" {
		item.Title = fmt.Sprintf("%s (%s)", item.Title, raw.SourceName)
	}

	if published != nil {
		t := *published
		item.Published = &t
	}

	return item, true
}

// HasSummary reports whether the record carries summary text of its own.
func (a *Assembler) HasSummary(raw RawRecord) bool {
	return a.mapFields(raw.Fields)[descriptor.FieldSummary] != ""
}

// mapFields resolves raw names to canonical ones. A canonical name given
// directly wins over one reached through the field map.
func (a *Assembler) mapFields(fields map[string]string) map[string]string {
	values := make(map[string]string, len(canonicalFields))

	mapped := make([]string, 0, len(fields))
	for name, value := range fields {
		if _, remapped := a.fieldMap[name]; !remapped && canonicalFields[name] {
			values[name] = fieldValue(name, value)
			continue
		}
		mapped = append(mapped, name)
	}
	sort.Strings(mapped)

	for _, name := range mapped {
		target, ok := a.fieldMap[name]
		if !ok || !canonicalFields[target] || values[target] != "" {
			continue
		}
		values[target] = fieldValue(target, fields[name])
	}

	return values
}

// fieldValue cleans text fields. Links arrive decoded from the attribute and
// are only trimmed.
func fieldValue(field, value string) string {
	if field == descriptor.FieldLink {
		return strings.TrimSpace(value)
	}
	return cleanText(value)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
