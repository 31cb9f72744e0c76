package handlers

import (
	"regexp"
	"strings"
	"time"
)

var customVar = regexp.MustCompile(`\{custom:([A-Za-z0-9_.-]+)\}`)

// Expand substitutes {date}, {time}, {datetime} and {custom:name} in s.
// Unknown custom names expand to the empty string.
func Expand(s string, now time.Time, vars map[string]string) string {
	if s == "" {
		return s
	}
	s = customVar.ReplaceAllStringFunc(s, func(m string) string {
		return vars[customVar.FindStringSubmatch(m)[1]]
	})
	return wildcardReplacer(now).Replace(s)
}

func wildcardReplacer(now time.Time) *strings.Replacer {
	return strings.NewReplacer(
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("15:04:05"),
		"{datetime}", now.Format("2006-01-02_15-04-05"),
	)
}
