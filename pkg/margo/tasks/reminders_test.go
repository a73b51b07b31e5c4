package tasks

import (
	"testing"
	"time"

	"github.com/avelardi/margo/pkg/margo/vault"
)

var now = time.Date(2025, 6, 10, 13, 0, 0, 0, time.Local)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fm   map[string]any
		ok   bool
	}{
		{
			name: "schedulable task",
			fm: map[string]any{
				"title": "Call the bank", "date": "2025-06-10",
				"startTime": "14:00", "completed": false, "status": "todo",
			},
			ok: true,
		},
		{
			name: "completed task",
			fm: map[string]any{
				"date": "2025-06-10", "startTime": "14:00",
				"completed": true, "status": "todo",
			},
			ok: false,
		},
		{
			name: "wrong status",
			fm: map[string]any{
				"date": "2025-06-10", "startTime": "14:00",
				"completed": false, "status": "done",
			},
			ok: false,
		},
		{
			name: "missing status",
			fm:   map[string]any{"date": "2025-06-10", "startTime": "14:00"},
			ok:   false,
		},
		{
			name: "missing date",
			fm:   map[string]any{"startTime": "14:00", "status": "todo"},
			ok:   false,
		},
		{
			name: "missing start time",
			fm:   map[string]any{"date": "2025-06-10", "status": "todo"},
			ok:   false,
		},
		{
			name: "past due instant",
			fm: map[string]any{
				"date": "2025-06-10", "startTime": "09:00", "status": "todo",
			},
			ok: false,
		},
		{
			name: "unparseable date",
			fm: map[string]any{
				"date": "June 10th", "startTime": "14:00", "status": "todo",
			},
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, ok := Extract(tt.fm, "tasks/call-bank.md", now, nil)
			if ok != tt.ok {
				t.Fatalf("Extract ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			want := time.Date(2025, 6, 10, 14, 0, 0, 0, time.Local)
			if !d.Due.Equal(want) {
				t.Errorf("Due = %v, want %v", d.Due, want)
			}
			if d.Title != "Call the bank" {
				t.Errorf("Title = %q", d.Title)
			}
		})
	}
}

func TestExtractTitleFallsBackToFilename(t *testing.T) {
	t.Parallel()
	fm := map[string]any{
		"date": "2025-06-10", "startTime": "14:00", "status": "todo",
	}
	d, ok := Extract(fm, "tasks/water plants.md", now, nil)
	if !ok {
		t.Fatal("Extract failed")
	}
	if d.Title != "water plants" {
		t.Errorf("Title = %q, want %q", d.Title, "water plants")
	}
}

func TestExtractMalformedTimeExcludesTask(t *testing.T) {
	t.Parallel()

	// A document whose startTime failed normalization carries nil, which
	// reads as "absent" here and excludes it from scheduling.
	doc := []byte("---\ndate: 2025-06-10\nstartTime: \"25:99\"\nstatus: todo\n---\n")
	fm := vault.ParseFrontmatter(doc, nil)
	if _, ok := Extract(fm, "tasks/x.md", now, nil); ok {
		t.Fatal("task with malformed startTime must not be schedulable")
	}
}

func TestReminderTimes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		due       time.Time
		wantLong  bool
		wantShort bool
	}{
		{"due in an hour", now.Add(time.Hour), true, true},
		{"due in exactly 30m", now.Add(30 * time.Minute), false, true},
		{"due in 10m", now.Add(10 * time.Minute), false, true},
		{"due in exactly 5m", now.Add(5 * time.Minute), false, false},
		{"due in 3m", now.Add(3 * time.Minute), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			long, short := ReminderTimes(tt.due, now)
			if (long != nil) != tt.wantLong {
				t.Errorf("long = %v, want present=%v", long, tt.wantLong)
			}
			if (short != nil) != tt.wantShort {
				t.Errorf("short = %v, want present=%v", short, tt.wantShort)
			}
			if long != nil && !long.After(now) {
				t.Error("long reminder is not in the future")
			}
			if short != nil && !short.After(now) {
				t.Error("short reminder is not in the future")
			}
		})
	}
}

func TestEndToEndScenario(t *testing.T) {
	t.Parallel()

	// Task due 2025-06-10 14:00, evaluated at 13:00: both reminders are
	// still in the future (13:30 and 13:55) and must be scheduled.
	doc := []byte(`---
title: Call the bank
date: 2025-06-10
startTime: "14:00"
completed: false
status: todo
---
`)
	fm := vault.ParseFrontmatter(doc, nil)
	d, ok := Extract(fm, "tasks/call-bank.md", now, nil)
	if !ok {
		t.Fatal("Extract failed")
	}
	long, short := ReminderTimes(d.Due, now)
	if long == nil || short == nil {
		t.Fatalf("reminders = (%v, %v), want both set", long, short)
	}
	if got := long.Format("15:04"); got != "13:30" {
		t.Errorf("long reminder at %s, want 13:30", got)
	}
	if got := short.Format("15:04"); got != "13:55" {
		t.Errorf("short reminder at %s, want 13:55", got)
	}
}
