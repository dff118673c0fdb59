package browser

import (
	"regexp"
	"strings"
)

// LoopbackPattern matches the loopback URLs used as OAuth redirect targets.
// Matches: http://localhost:PORT/path?query or http://127.0.0.1:PORT/path?query
var LoopbackPattern = regexp.MustCompile(`^https?://(?:localhost|127\.0\.0\.1|\[::1\]):[0-9]+(?:[/?#][^\s"']*)?$`)

// IsLoopbackURL reports whether s points at a port on the local machine.
func IsLoopbackURL(s string) bool {
	return LoopbackPattern.MatchString(strings.TrimSpace(s))
}

// shellEscape escapes a string for safe use inside double-quoted shell strings.
func shellEscape(s string) string {
	// Special inside double quotes in POSIX sh: $ ` \ "
	var result strings.Builder
	result.Grow(len(s) + 10)
	for _, r := range s {
		switch r {
		case '"', '$', '`', '\\':
			result.WriteByte('\\')
			result.WriteRune(r)
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
