// Package planner computes free time blocks for a day, ranks pending tasks,
// and proposes scheduling slots for the user to confirm.
package planner

import (
	"sort"
	"time"
)

// DayType selects the working window for a day.
type DayType int

const (
	Workday DayType = iota
	Weekend // also used for holidays
)

// Granularity is the slot rounding unit; proposed starts always land on a
// boundary and blocks shorter than this are discarded.
const Granularity = 15 * time.Minute

// TaskBuffer is the trailing gap reserved after every scheduled task.
const TaskBuffer = 15 * time.Minute

// Window hours per day type.
const (
	workdayStartHour = 9
	workdayEndHour   = 18
	weekendStartHour = 10
	weekendEndHour   = 20
)

// Block is a free interval of the day.
type Block struct {
	Start time.Time
	End   time.Time
}

// Duration returns the block length.
func (b Block) Duration() time.Duration { return b.End.Sub(b.Start) }

// Scheduled is an already-booked task occupying part of the day.
type Scheduled struct {
	Start    time.Time
	Duration time.Duration
}

// Pending is a task that still needs a slot.
type Pending struct {
	ID       string
	Content  string
	Overdue  bool
	DueToday bool // due today with no time attached
	Priority int  // 1 (normal) .. 4 (urgent), tracker convention
	Labels   []string
	Duration time.Duration // 0 means unknown
}

// Suggestion pairs a pending task with a proposed start.
type Suggestion struct {
	Task  Pending
	Start time.Time
	End   time.Time
}

// RoundUp advances t to the next Granularity boundary. A time already on
// the boundary is returned unchanged; otherwise seconds are zeroed and the
// minute advances to the boundary.
func RoundUp(t time.Time) time.Time {
	trunc := t.Truncate(Granularity)
	if trunc.Equal(t) {
		return t
	}
	return trunc.Add(Granularity)
}

// window returns the working window for the day containing now.
func window(now time.Time, dayType DayType) (time.Time, time.Time) {
	startHour, endHour := workdayStartHour, workdayEndHour
	if dayType == Weekend {
		startHour, endHour = weekendStartHour, weekendEndHour
	}
	y, m, d := now.Date()
	start := time.Date(y, m, d, startHour, 0, 0, 0, now.Location())
	end := time.Date(y, m, d, endHour, 0, 0, 0, now.Location())
	return start, end
}

// AvailableBlocks computes the free blocks left in the day after carving
// out every scheduled task plus its trailing buffer. The search starts at
// max(now, window start) rounded up to the next boundary. Fragments shorter
// than the granularity are dropped.
func AvailableBlocks(now time.Time, dayType DayType, existing []Scheduled) []Block {
	winStart, winEnd := window(now, dayType)
	start := winStart
	if now.After(start) {
		start = now
	}
	start = RoundUp(start)
	if !start.Before(winEnd) {
		return nil
	}

	blocks := []Block{{Start: start, End: winEnd}}
	for _, task := range existing {
		busyStart := task.Start
		busyEnd := task.Start.Add(task.Duration + TaskBuffer)

		var next []Block
		for _, b := range blocks {
			if !busyStart.Before(b.End) || !busyEnd.After(b.Start) {
				next = append(next, b)
				continue
			}
			if busyStart.After(b.Start) {
				next = append(next, Block{Start: b.Start, End: busyStart})
			}
			if busyEnd.Before(b.End) {
				next = append(next, Block{Start: busyEnd, End: b.End})
			}
		}
		blocks = next
	}

	out := blocks[:0]
	for _, b := range blocks {
		if b.Duration() >= Granularity {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Score computes the ranking score for a pending task.
func Score(t Pending, dayType DayType) int {
	score := 0
	if t.Overdue {
		score += 100
	}
	if t.DueToday {
		score += 80
	}
	switch t.Priority {
	case 4:
		score += 50
	case 3:
		score += 30
	case 2:
		score += 15
	}

	work := hasLabel(t, "work")
	if dayType == Workday {
		if work {
			score += 20
		}
	} else {
		if !work {
			score += 10
		}
		if hasLabel(t, "leisure") {
			score += 30
		}
	}
	return score
}

// Rank orders pending tasks by descending score. The sort is stable, so
// ties keep their original retrieval order.
func Rank(tasks []Pending, dayType DayType) []Pending {
	ranked := make([]Pending, len(tasks))
	copy(ranked, tasks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Score(ranked[i], dayType) > Score(ranked[j], dayType)
	})
	return ranked
}

// ProposeSlots walks the ranked tasks and assigns each one the first block
// that fits its duration, starting at the block start rounded up to the
// next boundary. A block is consumed whole once used. Tasks without a known
// duration are returned separately for clarification.
func ProposeSlots(ranked []Pending, blocks []Block) (suggestions []Suggestion, needsClarification []Pending) {
	free := make([]Block, len(blocks))
	copy(free, blocks)
	sort.Slice(free, func(i, j int) bool { return free[i].Start.Before(free[j].Start) })

	used := make([]bool, len(free))
	for _, task := range ranked {
		if task.Duration <= 0 {
			needsClarification = append(needsClarification, task)
			continue
		}
		for i, b := range free {
			if used[i] {
				continue
			}
			start := RoundUp(b.Start)
			end := start.Add(task.Duration)
			if end.After(b.End) {
				continue
			}
			suggestions = append(suggestions, Suggestion{Task: task, Start: start, End: end})
			used[i] = true
			break
		}
	}
	return suggestions, needsClarification
}

func hasLabel(t Pending, label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}
