// Package tasks derives schedulable reminders from vault task documents.
// A document is schedulable when its frontmatter carries a date, a
// normalized start time, an open status, and is not completed.
package tasks

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Reminder lead times before a task is due.
const (
	LeadLong  = 30 * time.Minute
	LeadShort = 5 * time.Minute
)

// Details holds the scheduling-relevant attributes of a task document.
type Details struct {
	Due       time.Time // local due instant (date + startTime)
	Title     string
	StartTime string // normalized "HH:MM"
}

// Extract decides whether a document's frontmatter describes a schedulable
// task and, if so, computes its due instant. Returns ok=false (never an
// error) when any requirement is missing: date, startTime, status "todo",
// not completed, and a due instant that is not in the past.
func Extract(fm map[string]any, path string, now time.Time, logger *slog.Logger) (Details, bool) {
	if logger == nil {
		logger = slog.Default()
	}

	date, _ := fm["date"].(string)
	start, _ := fm["startTime"].(string)
	if date == "" || start == "" {
		return Details{}, false
	}
	if completed, _ := fm["completed"].(bool); completed {
		return Details{}, false
	}
	if status, _ := fm["status"].(string); status != "todo" {
		return Details{}, false
	}

	due, err := time.ParseInLocation("2006-01-02 15:04", date+" "+start, now.Location())
	if err != nil {
		logger.Debug("unparseable task timestamp",
			"path", path, "date", date, "startTime", start)
		return Details{}, false
	}
	if due.Before(now) {
		return Details{}, false
	}

	title, _ := fm["title"].(string)
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return Details{Due: due, Title: title, StartTime: start}, true
}

// ReminderTimes computes the 30- and 5-minute reminder instants for a due
// time. An offset that would fall at or before now is dropped: a task due in
// 10 minutes yields only the short reminder, one due in 3 minutes neither.
func ReminderTimes(due, now time.Time) (long, short *time.Time) {
	return ReminderAt(due, now, LeadLong), ReminderAt(due, now, LeadShort)
}

// ReminderAt returns due minus lead, or nil when that instant is not
// strictly in the future.
func ReminderAt(due, now time.Time, lead time.Duration) *time.Time {
	t := due.Add(-lead)
	if !t.After(now) {
		return nil
	}
	return &t
}
