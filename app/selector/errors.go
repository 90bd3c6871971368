package selector

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoMatch = errors.New("no selector matched")

// ParseError reports a field that none of its selectors could extract.
type ParseError struct {
	Field     string
	Selectors []string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to extract %s using [%s]: %v", e.Field, strings.Join(e.Selectors, ", "), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
