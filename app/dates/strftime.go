package dates

import (
	"fmt"
	"strings"
)

// Parse layouts for strftime directives. Numeric day, month and hour accept
// one or two digits, as strptime does.
var strftimeLayouts = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "1",
	'd': "2",
	'e': "_2",
	'j': "002",
	'H': "15",
	'I': "3",
	'M': "04",
	'S': "05",
	'f': "000000",
	'p': "PM",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'z': "-0700",
	'Z': "MST",
	'%': "%",
}

// StrftimeToLayout converts a strftime pattern such as "%d-%m-%Y" into a Go
// time layout. The "%-d" style flags are accepted and ignored.
func StrftimeToLayout(format string) (string, error) {
	var b strings.Builder

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}

		i++
		if i < len(format) && format[i] == '-' {
			i++
		}
		if i >= len(format) {
			return "", fmt.Errorf("dangling %% in date format %q", format)
		}

		layout, ok := strftimeLayouts[format[i]]
		if !ok {
			return "", fmt.Errorf("unsupported directive %%%c in date format %q", format[i], format)
		}
		b.WriteString(layout)
	}

	return b.String(), nil
}
