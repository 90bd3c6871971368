package descriptor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

var attrNamePattern = regexp.MustCompile(`^[A-Za-z_:][-A-Za-z0-9_:.]*$`)

func (s *SelectorSpec) UnmarshalYAML(value *yaml.Node) error {
	var raw []string

	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*s = nil
			return nil
		}
		raw = []string{value.Value}
	case yaml.SequenceNode:
		if err := value.Decode(&raw); err != nil {
			return fmt.Errorf("line %d: selector list must contain strings: %w", value.Line, err)
		}
	default:
		return fmt.Errorf("line %d: selector must be a string or a list of strings", value.Line)
	}

	spec := make(SelectorSpec, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		spec = append(spec, splitSelector(r))
	}
	*s = spec

	return nil
}

// splitSelector separates the "css@attr" shorthand.
func splitSelector(raw string) Selector {
	idx := strings.LastIndex(raw, "@")
	if idx > 0 && attrNamePattern.MatchString(raw[idx+1:]) {
		return Selector{
			CSS:  strings.TrimSpace(raw[:idx]),
			Attr: raw[idx+1:],
		}
	}
	return Selector{CSS: raw}
}

// compile attaches cascadia matchers to every selector in s.
func (s SelectorSpec) compile() error {
	for i := range s {
		group, err := cascadia.ParseGroup(s[i].CSS)
		if err != nil {
			return fmt.Errorf("invalid selector %q: %w", s[i].CSS, err)
		}
		s[i].Match = cascadia.Selector(group.Match)
	}
	return nil
}

// withDefaultAttr fills in attr for selectors that do not name one.
func (s SelectorSpec) withDefaultAttr(attr string) SelectorSpec {
	if attr == "" {
		return s
	}
	out := make(SelectorSpec, len(s))
	for i, sel := range s {
		if sel.Attr == "" {
			sel.Attr = attr
		}
		out[i] = sel
	}
	return out
}

// MustSpec builds a compiled spec from selector strings. It panics on invalid
// input and is meant for tests and built-in defaults.
func MustSpec(selectors ...string) SelectorSpec {
	spec := make(SelectorSpec, 0, len(selectors))
	for _, s := range selectors {
		spec = append(spec, splitSelector(s))
	}
	if err := spec.compile(); err != nil {
		panic(err)
	}
	return spec
}
