package domain

import (
	"errors"
	"time"
)

// ErrEmptySet is returned by Union when called without intervals. Callers are
// expected to guard against it.
var ErrEmptySet = errors.New("empty interval set")

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.Start, i.End, o.Start, o.End)
}

func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// OverlapsAny reports whether i intersects at least one of blocks.
func (i Interval) OverlapsAny(blocks []Interval) bool {
	for _, b := range blocks {
		if i.Overlaps(b) {
			return true
		}
	}
	return false
}

// Union returns the earliest start and latest end across intervals.
func Union(intervals []Interval) (Interval, error) {
	if len(intervals) == 0 {
		return Interval{}, ErrEmptySet
	}
	out := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.Start.Before(out.Start) {
			out.Start = iv.Start
		}
		if iv.End.After(out.End) {
			out.End = iv.End
		}
	}
	return out, nil
}
