// Package timeframe defines the chart timeframes the system understands
// and their wall-clock durations.
package timeframe

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is a chart bar interval name ("M1", "H4", "D1", ...).
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
	W1  Timeframe = "W1"
	MN  Timeframe = "MN"
)

// durations maps each timeframe to its bar duration. MN is approximated
// at 30 days, matching the display math rather than calendar months.
var durations = map[Timeframe]time.Duration{
	M1:  time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  time.Hour,
	H4:  4 * time.Hour,
	D1:  24 * time.Hour,
	W1:  7 * 24 * time.Hour,
	MN:  30 * 24 * time.Hour,
}

// ordered lists all timeframes shortest-first for menus and iteration.
var ordered = []Timeframe{M1, M5, M15, M30, H1, H4, D1, W1, MN}

// All returns every known timeframe, shortest first.
func All() []Timeframe {
	out := make([]Timeframe, len(ordered))
	copy(out, ordered)
	return out
}

// Duration returns the bar duration. Unknown timeframes fall back to M1
// so a bad selection degrades instead of dividing by zero.
func (tf Timeframe) Duration() time.Duration {
	if d, ok := durations[tf]; ok {
		return d
	}
	return time.Minute
}

// Millis returns the bar duration in milliseconds, the unit used when a
// logical bar distance is converted to elapsed time.
func (tf Timeframe) Millis() int64 {
	return tf.Duration().Milliseconds()
}

// Seconds returns the bar duration in whole seconds.
func (tf Timeframe) Seconds() int64 {
	return int64(tf.Duration() / time.Second)
}

// Valid reports whether the timeframe is one of the known intervals.
func (tf Timeframe) Valid() bool {
	_, ok := durations[tf]
	return ok
}

// Parse normalizes a timeframe string ("m5", "M5") and validates it.
func Parse(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	if !tf.Valid() {
		return "", fmt.Errorf("timeframe: unknown interval %q", s)
	}
	return tf, nil
}

// ParseList parses a comma-separated timeframe list, skipping invalid
// entries. Used for the ENABLED_TFS config value.
func ParseList(s string) []Timeframe {
	var out []Timeframe
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		tf, err := Parse(p)
		if err != nil {
			continue
		}
		out = append(out, tf)
	}
	return out
}
