package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, drops control characters, collapses internal
// whitespace runs to one space and truncates to maxRunes runes (0 = no limit).
func SanitizeString(input string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(input))
	n := 0
	pendingSpace := false
	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = n > 0
			continue
		case unicode.IsControl(r):
			continue
		}
		if maxRunes > 0 && n >= maxRunes {
			break
		}
		if pendingSpace {
			if maxRunes > 0 && n+1 >= maxRunes {
				break
			}
			b.WriteByte(' ')
			n++
			pendingSpace = false
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
