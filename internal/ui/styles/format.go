package styles

import (
	"fmt"
	"strings"
	"time"

	"github.com/dndj/dndj/internal/library"
)

// FormatRepeat renders a repeat count; 0 means forever.
func FormatRepeat(n int) string {
	if n == 0 {
		return "∞"
	}
	return fmt.Sprintf("×%d", n)
}

// FormatPercent renders a 0..1 volume as a percentage.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// FormatSpan renders an optional start/end window, or "" when neither is set.
func FormatSpan(start, end time.Duration) string {
	if start == 0 && end == 0 {
		return ""
	}
	from, to := "start", "end"
	if start > 0 {
		from = library.FormatClock(start)
	}
	if end > 0 {
		to = library.FormatClock(end)
	}
	return from + "–" + to
}

// FormatFlags joins the names of the set flags, e.g. "loop, shuffle".
func FormatFlags(flags map[string]bool, order ...string) string {
	var set []string
	for _, name := range order {
		if flags[name] {
			set = append(set, name)
		}
	}
	return strings.Join(set, ", ")
}
