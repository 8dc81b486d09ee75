package library

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseClock parses "H:M:S" (also "M:S" and "S") into a duration.
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%q is not in H:M:S format", s)
	}
	limits := []int{59, 59}
	var total time.Duration
	units := []time.Duration{time.Second, time.Minute, time.Hour}
	for i := range parts {
		p := parts[len(parts)-1-i]
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%q is not in H:M:S format", s)
		}
		if i < len(limits) && len(parts) > i+1 && n > limits[i] {
			return 0, fmt.Errorf("%q: component %d out of range", s, n)
		}
		total += time.Duration(n) * units[i]
	}
	return total, nil
}

// FormatClock renders d as H:MM:SS.
func FormatClock(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	sec := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
}
