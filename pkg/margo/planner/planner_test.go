package planner

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2025, 6, 10, h, m, 0, 0, time.Local)
}

func TestRoundUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{at(9, 0), at(9, 0)},   // on boundary, unchanged
		{at(9, 15), at(9, 15)}, // on boundary, unchanged
		{at(9, 1), at(9, 15)},
		{at(9, 14), at(9, 15)},
		{at(9, 16), at(9, 30)},
		{at(9, 59), at(10, 0)},
		{time.Date(2025, 6, 10, 9, 15, 1, 0, time.Local), at(9, 30)}, // seconds push past boundary
	}
	for _, tt := range tests {
		if got := RoundUp(tt.in); !got.Equal(tt.want) {
			t.Errorf("RoundUp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAvailableBlocksEmptyDay(t *testing.T) {
	t.Parallel()

	// At 08:00 on a workday the whole 09:00-18:00 window is free.
	blocks := AvailableBlocks(at(8, 0), Workday, nil)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %v, want 1", blocks)
	}
	if !blocks[0].Start.Equal(at(9, 0)) || !blocks[0].End.Equal(at(18, 0)) {
		t.Fatalf("block = %+v", blocks[0])
	}
}

func TestAvailableBlocksStartsAtNow(t *testing.T) {
	t.Parallel()

	// Mid-morning start is rounded up to the next quarter hour.
	blocks := AvailableBlocks(at(10, 7), Workday, nil)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %v, want 1", blocks)
	}
	if !blocks[0].Start.Equal(at(10, 15)) {
		t.Fatalf("start = %v, want 10:15", blocks[0].Start)
	}
}

func TestAvailableBlocksCarvesTasksWithBuffer(t *testing.T) {
	t.Parallel()

	existing := []Scheduled{
		{Start: at(11, 0), Duration: time.Hour}, // busy 11:00-12:15 incl. buffer
	}
	blocks := AvailableBlocks(at(8, 0), Workday, existing)
	if len(blocks) != 2 {
		t.Fatalf("blocks = %v, want 2", blocks)
	}
	if !blocks[0].End.Equal(at(11, 0)) {
		t.Errorf("first block ends %v, want 11:00", blocks[0].End)
	}
	if !blocks[1].Start.Equal(at(12, 15)) {
		t.Errorf("second block starts %v, want 12:15", blocks[1].Start)
	}
}

func TestAvailableBlocksDropsSlivers(t *testing.T) {
	t.Parallel()

	// Task ending (with buffer) 10 minutes before the window end leaves a
	// fragment shorter than the granularity, which is dropped.
	existing := []Scheduled{
		{Start: at(9, 0), Duration: 8*time.Hour + 35*time.Minute}, // busy until 17:50
	}
	blocks := AvailableBlocks(at(8, 0), Workday, existing)
	if len(blocks) != 0 {
		t.Fatalf("blocks = %v, want none", blocks)
	}
}

func TestAvailableBlocksWeekendWindow(t *testing.T) {
	t.Parallel()

	blocks := AvailableBlocks(at(8, 0), Weekend, nil)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %v, want 1", blocks)
	}
	if blocks[0].Start.Hour() != weekendStartHour || blocks[0].End.Hour() != weekendEndHour {
		t.Fatalf("weekend window = %+v", blocks[0])
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		task    Pending
		dayType DayType
		want    int
	}{
		{"overdue", Pending{Overdue: true}, Workday, 100},
		{"due today", Pending{DueToday: true}, Workday, 80},
		{"urgent priority", Pending{Priority: 4}, Workday, 50},
		{"high priority", Pending{Priority: 3}, Workday, 30},
		{"medium priority", Pending{Priority: 2}, Workday, 15},
		{"work task on workday", Pending{Labels: []string{"work"}}, Workday, 20},
		{"work task on weekend", Pending{Labels: []string{"work"}}, Weekend, 0},
		{"personal task on weekend", Pending{}, Weekend, 10},
		{"leisure task on weekend", Pending{Labels: []string{"leisure"}}, Weekend, 40},
		{
			"overdue urgent work task on workday",
			Pending{Overdue: true, Priority: 4, Labels: []string{"work"}},
			Workday,
			170,
		},
	}
	for _, tt := range tests {
		if got := Score(tt.task, tt.dayType); got != tt.want {
			t.Errorf("%s: Score = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestRankStableOnTies(t *testing.T) {
	t.Parallel()

	tasks := []Pending{
		{ID: "a", Priority: 2},
		{ID: "b", Priority: 2},
		{ID: "c", Priority: 4},
	}
	ranked := Rank(tasks, Workday)
	if ranked[0].ID != "c" {
		t.Fatalf("ranked[0] = %s, want c", ranked[0].ID)
	}
	if ranked[1].ID != "a" || ranked[2].ID != "b" {
		t.Fatalf("tie order not preserved: %s, %s", ranked[1].ID, ranked[2].ID)
	}
}

func TestProposeSlots(t *testing.T) {
	t.Parallel()

	blocks := []Block{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(14, 0), End: at(16, 0)},
	}
	tasks := []Pending{
		{ID: "long", Duration: 90 * time.Minute},  // only fits the afternoon
		{ID: "short", Duration: 30 * time.Minute}, // takes the morning block
		{ID: "unknown"},                           // no duration
	}

	suggestions, clarify := ProposeSlots(tasks, blocks)
	if len(suggestions) != 2 {
		t.Fatalf("suggestions = %+v, want 2", suggestions)
	}
	if suggestions[0].Task.ID != "long" || !suggestions[0].Start.Equal(at(14, 0)) {
		t.Errorf("first suggestion = %+v", suggestions[0])
	}
	if suggestions[1].Task.ID != "short" || !suggestions[1].Start.Equal(at(9, 0)) {
		t.Errorf("second suggestion = %+v", suggestions[1])
	}
	if len(clarify) != 1 || clarify[0].ID != "unknown" {
		t.Fatalf("needsClarification = %+v", clarify)
	}
}

func TestProposeSlotsConsumesBlockWholly(t *testing.T) {
	t.Parallel()

	blocks := []Block{{Start: at(9, 0), End: at(12, 0)}}
	tasks := []Pending{
		{ID: "first", Duration: 30 * time.Minute},
		{ID: "second", Duration: 30 * time.Minute},
	}
	suggestions, _ := ProposeSlots(tasks, blocks)
	if len(suggestions) != 1 {
		t.Fatalf("suggestions = %+v, want 1 (block reused within one pass)", suggestions)
	}
}
