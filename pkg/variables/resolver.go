package variables

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultDateFormat is the format applied when a date expression omits one:
// day, abbreviated month, 4-digit year ("31 Mar 2025").
const DefaultDateFormat = "dd MMM yyyy"

var (
	todayPattern   = regexp.MustCompile(`\$\{TODAY(?::([^}]+))?\}`)
	dateAddPattern = regexp.MustCompile(`\$\{DATE_ADD:(\w+):(-?\d+)(?::([^}]+))?\}`)
	varPattern     = regexp.MustCompile(`\$\{(\w+)\}`)
)

// formatReplacer translates the workflow date-format grammar into Go
// reference layouts. Longer tokens are listed first so MMMM wins over MM.
var formatReplacer = strings.NewReplacer(
	"yyyy", "2006",
	"MMMM", "January",
	"MMM", "Jan",
	"MM", "01",
	"dd", "02",
)

// parseLayouts are the accepted input formats, tried in order.
var parseLayouts = []string{
	"02 Jan 2006",     // 31 Mar 2025
	"02 January 2006", // 31 March 2025
	"2006-01-02",      // 2025-03-31
	"02/01/2006",      // 31/03/2025
}

// Layout converts a workflow date format ("dd MMM yyyy") to a Go layout.
func Layout(format string) string {
	return formatReplacer.Replace(format)
}

// ParseDate parses a date in any of the accepted formats.
func ParseDate(s string) (time.Time, bool) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// FormatDate renders t using the workflow date-format grammar.
func FormatDate(t time.Time, format string) string {
	if format == "" {
		format = DefaultDateFormat
	}

	return t.Format(Layout(format))
}

// Resolve expands template expressions in value. Three passes run in fixed
// order, each once over the whole string:
//
//  1. ${TODAY[:fmt]} for the current date
//  2. ${DATE_ADD:var:±days[:fmt]} for a stored date shifted by days
//  3. ${NAME} from the environment first, then the store
//
// Unresolvable expressions substitute the empty string.
func (s *Store) Resolve(value string) string {
	value = todayPattern.ReplaceAllStringFunc(value, func(match string) string {
		groups := todayPattern.FindStringSubmatch(match)

		return FormatDate(time.Now(), groups[1])
	})

	value = dateAddPattern.ReplaceAllStringFunc(value, func(match string) string {
		groups := dateAddPattern.FindStringSubmatch(match)
		name := groups[1]

		days, err := strconv.Atoi(groups[2])
		if err != nil {
			return ""
		}

		stored := s.GetString(name)
		if stored == "" {
			return ""
		}

		parsed, ok := ParseDate(stored)
		if !ok {
			return ""
		}

		return FormatDate(parsed.AddDate(0, 0, days), groups[3])
	})

	return varPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]

		if env, ok := s.lookupEnv(name); ok {
			return env
		}

		return s.GetString(name)
	})
}

// ResolveAny expands template expressions when value is a string and passes
// every other type through unchanged.
func (s *Store) ResolveAny(value any) any {
	if str, ok := value.(string); ok {
		return s.Resolve(str)
	}

	return value
}
