// Package session decides whether a moment falls inside the configured
// trading windows of the trading timezone.
package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSessions = "14:00-23:00,19:00-04:00"
	DefaultTimezone = "Asia/Jakarta"

	minutesPerDay = 24 * 60
)

// Window is a half-open [Start,End) interval in minutes since local
// midnight. End may exceed a day when the window crosses midnight.
type Window struct {
	Start int
	End   int
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", clock(w.Start), clock(w.End))
}

func clock(m int) string {
	m %= minutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseWindows parses "HH:MM-HH:MM,..." into expanded, unmerged windows.
// A range whose end is not after its start rolls over midnight.
func ParseWindows(raw string) ([]Window, error) {
	var out []Window
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("session %q: want HH:MM-HH:MM", part)
		}
		start, err := parseClock(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("session %q: %w", part, err)
		}
		end, err := parseClock(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("session %q: %w", part, err)
		}
		if end <= start {
			end += minutesPerDay
		}
		out = append(out, Window{Start: start, End: end})
	}
	return out, nil
}

func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	hm := strings.SplitN(s, ":", 2)
	if len(hm) != 2 {
		return 0, fmt.Errorf("bad time %q", s)
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}

// Merge sorts windows by start and coalesces overlapping or touching ones.
func Merge(in []Window) []Window {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]Window(nil), in...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []Window{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &out[len(out)-1]
		if cur.Start <= last.End {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		out = append(out, cur)
	}
	return out
}

// Gate holds the merged windows for one configuration. It is built once
// and never mutated, so it is safe for concurrent use. A new configuration
// needs a new Gate.
type Gate struct {
	loc     *time.Location
	windows []Window
}

// NewGate parses and merges raw. An empty raw uses DefaultSessions.
func NewGate(raw string, loc *time.Location) (*Gate, error) {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultSessions
	}
	if loc == nil {
		loc = time.UTC
	}
	ws, err := ParseWindows(raw)
	if err != nil {
		return nil, err
	}
	if len(ws) == 0 {
		return nil, fmt.Errorf("no trading sessions in %q", raw)
	}
	return &Gate{loc: loc, windows: Merge(ws)}, nil
}

// Windows returns a copy of the merged windows.
func (g *Gate) Windows() []Window {
	return append([]Window(nil), g.windows...)
}

func (g *Gate) Location() *time.Location {
	return g.loc
}

// Contains reports whether t is inside a trading window. Start minutes are
// inclusive and end minutes exclusive.
func (g *Gate) Contains(t time.Time) bool {
	now := MinuteOfDay(t, g.loc)
	for _, w := range g.windows {
		m := now
		if m < w.Start {
			m += minutesPerDay
		}
		if m >= w.Start && m < w.End {
			return true
		}
	}
	return false
}

// MinuteOfDay returns minutes since midnight of t in loc.
func MinuteOfDay(t time.Time, loc *time.Location) int {
	lt := t.In(loc)
	return lt.Hour()*60 + lt.Minute()
}
