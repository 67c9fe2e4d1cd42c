package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
)

func edmonton(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Edmonton")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	return loc
}

func mondayRule(start, end string, slotMins int) AvailabilityRule {
	return AvailabilityRule{
		ID:         uuid.New(),
		Weekday:    int(time.Monday),
		StartLocal: start,
		EndLocal:   end,
		SlotMins:   slotMins,
	}
}

func TestCandidateSlots_FullDay(t *testing.T) {
	loc := edmonton(t)
	date, _ := ParseDate("2026-01-05")
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, loc)

	slots := CandidateSlots(SlotRequest{
		Windows:       BuildWindows([]AvailabilityRule{mondayRule("09:00", "17:00", 60)}, date, loc),
		Duration:      time.Hour,
		EarliestStart: now.Add(60 * time.Minute),
	})

	if len(slots) != 8 {
		t.Fatalf("len(slots) = %d, want 8", len(slots))
	}
	first := time.Date(2026, 1, 5, 9, 0, 0, 0, loc)
	last := time.Date(2026, 1, 5, 16, 0, 0, 0, loc)
	if !slots[0].Equal(first) {
		t.Fatalf("first slot = %v, want %v", slots[0], first.UTC())
	}
	if !slots[len(slots)-1].Equal(last) {
		t.Fatalf("last slot = %v, want %v", slots[len(slots)-1], last.UTC())
	}
	if FormatSlot(slots[0]) != "2026-01-05T16:00:00.000Z" {
		t.Fatalf("FormatSlot = %q", FormatSlot(slots[0]))
	}
}

func TestCandidateSlots_SkipsBlocked(t *testing.T) {
	loc := edmonton(t)
	date, _ := ParseDate("2026-01-05")
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, loc)
	booked := Interval{
		Start: time.Date(2026, 1, 5, 12, 0, 0, 0, loc).UTC(),
		End:   time.Date(2026, 1, 5, 13, 0, 0, 0, loc).UTC(),
	}

	slots := CandidateSlots(SlotRequest{
		Windows:       BuildWindows([]AvailabilityRule{mondayRule("09:00", "17:00", 60)}, date, loc),
		Blocks:        []Interval{booked},
		Duration:      time.Hour,
		EarliestStart: now.Add(time.Hour),
	})

	if len(slots) != 7 {
		t.Fatalf("len(slots) = %d, want 7", len(slots))
	}
	for _, s := range slots {
		if s.Equal(booked.Start) {
			t.Fatalf("booked slot %v must be absent", s)
		}
	}
	// neighbours of the booking stay bookable because touching is not overlapping
	want11 := time.Date(2026, 1, 5, 11, 0, 0, 0, loc)
	want13 := time.Date(2026, 1, 5, 13, 0, 0, 0, loc)
	var has11, has13 bool
	for _, s := range slots {
		has11 = has11 || s.Equal(want11)
		has13 = has13 || s.Equal(want13)
	}
	if !has11 || !has13 {
		t.Fatalf("expected 11:00 and 13:00 to remain, got %v", slots)
	}
}

func TestCandidateSlots_LeadTimeAndTrailingFit(t *testing.T) {
	loc := edmonton(t)
	date, _ := ParseDate("2026-01-05")
	now := time.Date(2026, 1, 5, 10, 10, 0, 0, loc)

	slots := CandidateSlots(SlotRequest{
		Windows:       BuildWindows([]AvailabilityRule{mondayRule("09:00", "12:00", 30)}, date, loc),
		Duration:      45 * time.Minute,
		EarliestStart: now.Add(60 * time.Minute),
	})

	// earliest start is 11:10; 11:00 is too early and 11:30 overruns 12:00
	if len(slots) != 0 {
		t.Fatalf("slots = %v, want none", slots)
	}

	slots = CandidateSlots(SlotRequest{
		Windows:       BuildWindows([]AvailabilityRule{mondayRule("09:00", "12:00", 30)}, date, loc),
		Duration:      45 * time.Minute,
		EarliestStart: time.Date(2026, 1, 5, 9, 0, 0, 0, loc),
	})
	// 09:00 .. 11:00 by 30 minutes; 11:30 would end at 12:15
	if len(slots) != 5 {
		t.Fatalf("len(slots) = %d, want 5 (%v)", len(slots), slots)
	}
}

func TestCandidateSlots_WindowShorterThanDuration(t *testing.T) {
	loc := edmonton(t)
	date, _ := ParseDate("2026-01-05")

	slots := CandidateSlots(SlotRequest{
		Windows:       BuildWindows([]AvailabilityRule{mondayRule("09:00", "09:30", 15)}, date, loc),
		Duration:      time.Hour,
		EarliestStart: time.Time{},
	})
	if len(slots) != 0 {
		t.Fatalf("slots = %v, want none", slots)
	}
}

func TestCandidateSlots_IndependentGranularityAndDedup(t *testing.T) {
	loc := edmonton(t)
	date, _ := ParseDate("2026-01-05")

	rules := []AvailabilityRule{
		mondayRule("09:00", "11:00", 60),
		mondayRule("10:00", "11:00", 30),
	}
	slots := CandidateSlots(SlotRequest{
		Windows:  BuildWindows(rules, date, loc),
		Duration: 30 * time.Minute,
	})

	want := []time.Time{
		time.Date(2026, 1, 5, 9, 0, 0, 0, loc),
		time.Date(2026, 1, 5, 10, 0, 0, 0, loc),
		time.Date(2026, 1, 5, 10, 30, 0, 0, loc),
	}
	if len(slots) != len(want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slots[%d] = %v, want %v", i, slots[i], want[i].UTC())
		}
	}
}

func TestCandidateSlots_NonPositiveInputs(t *testing.T) {
	w := Window{Interval: Interval{Start: at(9, 0), End: at(17, 0)}, SlotMins: 0}
	if got := CandidateSlots(SlotRequest{Windows: []Window{w}, Duration: time.Hour}); len(got) != 0 {
		t.Fatalf("zero step slots = %v, want none", got)
	}
	w.SlotMins = 30
	if got := CandidateSlots(SlotRequest{Windows: []Window{w}, Duration: 0}); got != nil {
		t.Fatalf("zero duration slots = %v, want nil", got)
	}
}

// Every produced slot lies inside some window and clears every block.
func TestCandidateSlots_ContainmentProperty(t *testing.T) {
	loc := edmonton(t)
	date, _ := ParseDate("2026-03-08")
	rng := rand.New(rand.NewSource(7))

	for iter := 0; iter < 200; iter++ {
		var rules []AvailabilityRule
		for i := 0; i < 1+rng.Intn(3); i++ {
			s := rng.Intn(20 * 60)
			e := s + 15 + rng.Intn(6*60)
			if e > 24*60-1 {
				e = 24*60 - 1
			}
			rules = append(rules, AvailabilityRule{
				StartLocal: HMFromMinutes(s).String(),
				EndLocal:   HMFromMinutes(e).String(),
				SlotMins:   []int{10, 15, 30, 60}[rng.Intn(4)],
			})
		}
		windows := BuildWindows(rules, date, loc)
		bounds, err := Bounds(windows)
		if err != nil {
			t.Fatalf("Bounds error: %v", err)
		}

		var blocks []Interval
		for i := 0; i < rng.Intn(5); i++ {
			s := bounds.Start.Add(time.Duration(rng.Intn(18*60)) * time.Minute)
			blocks = append(blocks, Interval{Start: s, End: s.Add(time.Duration(15+rng.Intn(120)) * time.Minute)})
		}
		duration := time.Duration(15+rng.Intn(90)) * time.Minute

		req := SlotRequest{Windows: windows, Blocks: blocks, Duration: duration}
		slots := CandidateSlots(req)

		for i, s := range slots {
			slot := Interval{Start: s, End: s.Add(duration)}
			inside := false
			for _, w := range windows {
				if w.Contains(slot) {
					inside = true
					break
				}
			}
			if !inside {
				t.Fatalf("iter %d: slot %v not inside any window", iter, s)
			}
			if slot.OverlapsAny(blocks) {
				t.Fatalf("iter %d: slot %v overlaps a block", iter, s)
			}
			if i > 0 && !slots[i-1].Before(s) {
				t.Fatalf("iter %d: slots not strictly ascending at %d", iter, i)
			}
		}

		again := CandidateSlots(req)
		if len(again) != len(slots) {
			t.Fatalf("iter %d: second call returned %d slots, want %d", iter, len(again), len(slots))
		}
		for i := range again {
			if !again[i].Equal(slots[i]) {
				t.Fatalf("iter %d: second call differs at %d", iter, i)
			}
		}
	}
}
