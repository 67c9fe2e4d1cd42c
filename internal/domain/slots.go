package domain

import (
	"sort"
	"time"
)

// SlotLayout is ISO-8601 in UTC with millisecond precision.
const SlotLayout = "2006-01-02T15:04:05.000Z"

// Window is one availability rule applied to one calendar date, in UTC.
type Window struct {
	Interval
	SlotMins int
}

// BuildWindows converts the local start/end of each rule into UTC instants on
// date using loc.
func BuildWindows(rules []AvailabilityRule, date time.Time, loc *time.Location) []Window {
	out := make([]Window, 0, len(rules))
	for _, r := range rules {
		out = append(out, Window{
			Interval: Interval{
				Start: LocalToUTC(date, ParseHM(r.StartLocal), loc),
				End:   LocalToUTC(date, ParseHM(r.EndLocal), loc),
			},
			SlotMins: r.SlotMins,
		})
	}
	return out
}

// Bounds is the union of all windows and scopes the read of blocking rows.
func Bounds(windows []Window) (Interval, error) {
	ivs := make([]Interval, 0, len(windows))
	for _, w := range windows {
		ivs = append(ivs, w.Interval)
	}
	return Union(ivs)
}

type SlotRequest struct {
	Windows       []Window
	Blocks        []Interval
	Duration      time.Duration
	EarliestStart time.Time
}

// CandidateSlots walks every window in steps of its own granularity and keeps
// each start t where [t, t+Duration) fits inside the window, t is not before
// EarliestStart and no block overlaps. The result is sorted and free of
// duplicate instants.
func CandidateSlots(req SlotRequest) []time.Time {
	if req.Duration <= 0 {
		return nil
	}

	seen := make(map[int64]struct{})
	out := make([]time.Time, 0, 16)

	for _, w := range req.Windows {
		if w.SlotMins <= 0 {
			continue
		}
		step := time.Duration(w.SlotMins) * time.Minute

		for t := w.Start; t.Before(w.End); t = t.Add(step) {
			slot := Interval{Start: t, End: t.Add(req.Duration)}
			if slot.End.After(w.End) {
				break
			}
			if t.Before(req.EarliestStart) {
				continue
			}
			if slot.OverlapsAny(req.Blocks) {
				continue
			}
			key := t.UnixNano()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t.UTC())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func FormatSlot(t time.Time) string {
	return t.UTC().Format(SlotLayout)
}
