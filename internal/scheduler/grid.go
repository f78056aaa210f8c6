package scheduler

import (
	"fmt"
	"time"
)

// Slot is one fixed-length teaching period, in minutes since midnight.
type Slot struct {
	Start int
	End   int
}

// Window is a pause-bounded part of the working day inside which a full block must fit.
type Window struct {
	Start int
	End   int
}

// Break identifies the gap between the end of one slot and the start of the next.
type Break struct {
	From int
	To   int
}

// Segment is a contiguous piece of a block inside a single window.
type Segment struct {
	Start int
	End   int
}

// Minutes returns the segment length.
func (s Segment) Minutes() int {
	return s.End - s.Start
}

// Grid describes the working day.
type Grid struct {
	Slots   []Slot
	Windows []Window
	// MaxGap is the largest gap, in minutes, between two slots that still counts as contiguous.
	MaxGap int
	// ExtendedBreaks whitelists specific longer gaps that may still separate the segments of
	// one split block.
	ExtendedBreaks map[Break]struct{}
}

const slotMinutes = 60

// DefaultGrid returns the institution grid: eight one-hour slots in four two-hour windows.
func DefaultGrid() *Grid {
	return &Grid{
		Slots: []Slot{
			{Start: clock(8, 0), End: clock(9, 0)},
			{Start: clock(9, 0), End: clock(10, 0)},
			{Start: clock(10, 15), End: clock(11, 15)},
			{Start: clock(11, 15), End: clock(12, 15)},
			{Start: clock(13, 30), End: clock(14, 30)},
			{Start: clock(14, 30), End: clock(15, 30)},
			{Start: clock(15, 45), End: clock(16, 45)},
			{Start: clock(16, 45), End: clock(17, 45)},
		},
		Windows: []Window{
			{Start: clock(8, 0), End: clock(10, 0)},
			{Start: clock(10, 15), End: clock(12, 15)},
			{Start: clock(13, 30), End: clock(15, 30)},
			{Start: clock(15, 45), End: clock(17, 45)},
		},
		MaxGap: 15,
		ExtendedBreaks: map[Break]struct{}{
			{From: clock(12, 15), To: clock(13, 30)}: {},
		},
	}
}

func clock(hour, minute int) int {
	return hour*60 + minute
}

// Validate checks that slots are ordered, sized to one hour and contained in windows.
func (g *Grid) Validate() error {
	if len(g.Slots) == 0 || len(g.Windows) == 0 {
		return fmt.Errorf("grid needs at least one slot and one window")
	}
	for i, slot := range g.Slots {
		if slot.End-slot.Start != slotMinutes {
			return fmt.Errorf("slot %d must last %d minutes", i, slotMinutes)
		}
		if i > 0 && slot.Start < g.Slots[i-1].End {
			return fmt.Errorf("slot %d overlaps or precedes slot %d", i, i-1)
		}
		if g.windowIndex(slot.Start, slot.End) < 0 {
			return fmt.Errorf("slot %d is outside every working window", i)
		}
	}
	return nil
}

// StartTimes lists the candidate start minutes of full blocks.
func (g *Grid) StartTimes() []int {
	starts := make([]int, len(g.Slots))
	for i, slot := range g.Slots {
		starts[i] = slot.Start
	}
	return starts
}

// FitsInWindow reports whether [start,end) is contained in exactly one working window.
func (g *Grid) FitsInWindow(start, end int) bool {
	if end <= start {
		return false
	}
	matches := 0
	for _, w := range g.Windows {
		if start >= w.Start && end <= w.End {
			matches++
		}
	}
	return matches == 1
}

func (g *Grid) windowIndex(start, end int) int {
	for i, w := range g.Windows {
		if start >= w.Start && end <= w.End {
			return i
		}
	}
	return -1
}

// LongestWindow returns the length in minutes of the largest working window.
func (g *Grid) LongestWindow() int {
	longest := 0
	for _, w := range g.Windows {
		if w.End-w.Start > longest {
			longest = w.End - w.Start
		}
	}
	return longest
}

// IsExtendedBreak reports whether the gap between from and to is whitelisted.
func (g *Grid) IsExtendedBreak(from, to int) bool {
	_, ok := g.ExtendedBreaks[Break{From: from, To: to}]
	return ok
}

// Joinable reports whether slot i and slot i+1 may belong to the same split block.
func (g *Grid) Joinable(i int) bool {
	if i < 0 || i+1 >= len(g.Slots) {
		return false
	}
	from, to := g.Slots[i].End, g.Slots[i+1].Start
	return to-from <= g.MaxGap || g.IsExtendedBreak(from, to)
}

// SplitRuns enumerates, in slot order, every run of hours consecutive joinable slots that
// spans more than one window, already cut into per-window segments.
func (g *Grid) SplitRuns(hours int) [][]Segment {
	if hours <= 1 || hours > len(g.Slots) {
		return nil
	}
	var runs [][]Segment
	for first := 0; first+hours <= len(g.Slots); first++ {
		ok := true
		for i := first; i < first+hours-1; i++ {
			if !g.Joinable(i) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		segments := g.segmentRun(first, hours)
		if len(segments) > 1 {
			runs = append(runs, segments)
		}
	}
	return runs
}

func (g *Grid) segmentRun(first, hours int) []Segment {
	var segments []Segment
	current := -1
	for i := first; i < first+hours; i++ {
		slot := g.Slots[i]
		idx := g.windowIndex(slot.Start, slot.End)
		if idx == current && len(segments) > 0 && segments[len(segments)-1].End == slot.Start {
			segments[len(segments)-1].End = slot.End
			continue
		}
		segments = append(segments, Segment{Start: slot.Start, End: slot.End})
		current = idx
	}
	return segments
}

// At places a minute-of-day offset on the calendar date of day.
func At(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, day.Location()).Add(time.Duration(minutes) * time.Minute)
}

// MinuteOfDay is the inverse of At.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
