package session

import "time"

type Segment string

const (
	London  Segment = "LONDON"
	Overlap Segment = "OVERLAP"
	NYLate  Segment = "NY_LATE"
	Out     Segment = "OUT"
)

// SegmentAt labels t by the market segment it falls in, measured in the
// trading timezone.
func SegmentAt(t time.Time, loc *time.Location) Segment {
	m := MinuteOfDay(t, loc)
	switch {
	case m >= 14*60 && m < 19*60:
		return London
	case m >= 19*60 && m < 23*60:
		return Overlap
	case m >= 23*60 || m < 4*60:
		return NYLate
	}
	return Out
}

// Segment labels t using the gate's timezone.
func (g *Gate) Segment(t time.Time) Segment {
	return SegmentAt(t, g.loc)
}
