package assistant

import (
	"context"
	"time"

	"github.com/avelardi/margo/pkg/margo/planner"
	"github.com/avelardi/margo/pkg/margo/tracker"
)

// registerPlannerTools exposes day planning on top of the tracker.
func (t *Toolset) registerPlannerTools(reg *Registry) {
	reg.Register(Tool{
		Name:        "plan_day",
		Description: "Propose time slots for today's open tasks around what is already scheduled. day_type is \"workday\" or \"weekend\"; omitted means derive it from the calendar.",
		Example:     `{"day_type": "workday"}`,
		Handler:     t.planDay,
	})
}

func (t *Toolset) planDay(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	now := time.Now()
	dayType := dayTypeFor(now, optionalString(args, "day_type"))

	tasks, err := t.Tracker.ListTasks(ctx, "today | overdue")
	if err != nil {
		return nil, err
	}

	scheduled, pending := splitTasks(tasks, now)
	blocks := planner.AvailableBlocks(now, dayType, scheduled)
	ranked := planner.Rank(pending, dayType)
	suggestions, clarify := planner.ProposeSlots(ranked, blocks)

	out := map[string]any{
		"day_type":    dayTypeName(dayType),
		"free_blocks": formatBlocks(blocks),
		"suggestions": formatSuggestions(suggestions),
	}
	if len(clarify) > 0 {
		names := make([]string, 0, len(clarify))
		for _, p := range clarify {
			names = append(names, p.Content)
		}
		out["needs_duration"] = names
	}
	return out, nil
}

// splitTasks partitions tracker tasks into already-scheduled entries (a due
// datetime plus a duration) and pending ones that still need a slot.
func splitTasks(tasks []tracker.Task, now time.Time) ([]planner.Scheduled, []planner.Pending) {
	today := now.Format("2006-01-02")

	var scheduled []planner.Scheduled
	var pending []planner.Pending
	for _, task := range tasks {
		if task.Completed {
			continue
		}
		duration := taskDuration(task)
		if task.Due != nil && task.Due.Datetime != "" && duration > 0 {
			if start, err := time.Parse(time.RFC3339, task.Due.Datetime); err == nil {
				scheduled = append(scheduled, planner.Scheduled{
					Start:    start.In(now.Location()),
					Duration: duration,
				})
				continue
			}
		}
		p := planner.Pending{
			ID:       task.ID,
			Content:  task.Content,
			Priority: task.Priority,
			Labels:   task.Labels,
			Duration: duration,
		}
		if task.Due != nil {
			p.Overdue = task.Due.Date != "" && task.Due.Date < today
			p.DueToday = task.Due.Date == today && task.Due.Datetime == ""
		}
		pending = append(pending, p)
	}
	return scheduled, pending
}

func taskDuration(task tracker.Task) time.Duration {
	if task.Duration == nil || task.Duration.Amount <= 0 {
		return 0
	}
	switch task.Duration.Unit {
	case "minute":
		return time.Duration(task.Duration.Amount) * time.Minute
	case "day":
		return time.Duration(task.Duration.Amount) * 24 * time.Hour
	}
	return 0
}

func dayTypeFor(now time.Time, override string) planner.DayType {
	switch override {
	case "workday":
		return planner.Workday
	case "weekend":
		return planner.Weekend
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return planner.Weekend
	}
	return planner.Workday
}

func dayTypeName(dt planner.DayType) string {
	if dt == planner.Weekend {
		return "weekend"
	}
	return "workday"
}

func formatBlocks(blocks []planner.Block) []map[string]string {
	out := make([]map[string]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, map[string]string{
			"start": b.Start.Format("15:04"),
			"end":   b.End.Format("15:04"),
		})
	}
	return out
}

func formatSuggestions(suggestions []planner.Suggestion) []map[string]string {
	out := make([]map[string]string, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, map[string]string{
			"task":  s.Task.Content,
			"id":    s.Task.ID,
			"start": s.Start.Format("15:04"),
			"end":   s.End.Format("15:04"),
		})
	}
	return out
}
