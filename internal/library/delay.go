package library

import (
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"
)

var repeatDelayPattern = regexp.MustCompile(`^\s*(\d+)\s*(?:-\s*(\d+)\s*)?$`)

// RepeatDelay is the pause between two repeats of a sound, fixed or drawn
// uniformly from [Min, Max] at millisecond resolution.
type RepeatDelay struct {
	Min time.Duration
	Max time.Duration
}

// FixedDelay returns a delay that always lasts d.
func FixedDelay(d time.Duration) RepeatDelay {
	return RepeatDelay{Min: d, Max: d}
}

// maxDelayMillis is the largest delay a time.Duration can hold.
const maxDelayMillis = math.MaxInt64 / int64(time.Millisecond)

// ParseRepeatDelay parses "<ms>" or "<min>-<max>" in milliseconds.
func ParseRepeatDelay(s string) (RepeatDelay, error) {
	m := repeatDelayPattern.FindStringSubmatch(s)
	if m == nil {
		return RepeatDelay{}, &ConfigError{Field: "repeat_delay", Reason: fmt.Sprintf("%q must be <int> or <int>-<int>", s)}
	}
	lo, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return RepeatDelay{}, &ConfigError{Field: "repeat_delay", Reason: err.Error()}
	}
	hi := lo
	if m[2] != "" {
		if hi, err = strconv.ParseInt(m[2], 10, 64); err != nil {
			return RepeatDelay{}, &ConfigError{Field: "repeat_delay", Reason: err.Error()}
		}
	}
	if hi > maxDelayMillis {
		return RepeatDelay{}, &ConfigError{Field: "repeat_delay", Reason: fmt.Sprintf("%d exceeds the maximum of %d ms", hi, maxDelayMillis)}
	}
	if lo > hi {
		return RepeatDelay{}, &ConfigError{Field: "repeat_delay", Reason: fmt.Sprintf("min %d exceeds max %d", lo, hi)}
	}
	return RepeatDelay{Min: time.Duration(lo) * time.Millisecond, Max: time.Duration(hi) * time.Millisecond}, nil
}

// IsFixed reports whether every sample is the same.
func (d RepeatDelay) IsFixed() bool { return d.Min == d.Max }

// Sample draws a delay.
func (d RepeatDelay) Sample() time.Duration {
	if d.IsFixed() {
		return d.Min
	}
	lo, hi := d.Min.Milliseconds(), d.Max.Milliseconds()
	return time.Duration(lo+rand.Int64N(hi-lo+1)) * time.Millisecond
}

// String renders the delay in the form ParseRepeatDelay accepts.
func (d RepeatDelay) String() string {
	if d.IsFixed() {
		return strconv.FormatInt(d.Min.Milliseconds(), 10)
	}
	return fmt.Sprintf("%d-%d", d.Min.Milliseconds(), d.Max.Milliseconds())
}
