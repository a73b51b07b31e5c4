package scheduler

import (
	"testing"
	"time"
)

func TestParseRule(t *testing.T) {
	t.Parallel()

	valid := []string{
		"daily at 09:30",
		"daily at 00:01",
		"daily at 23:59",
		"DAILY AT 14:00",
		"every monday at 08:00",
		"every Friday at 18:30",
		"every sun at 10:00",
		"every 5 minutes",
		"every 1 minute",
		"every 2 hours",
		"every 3 days",
		"  every 10 minutes  ",
		"on 2025-06-12 at 07:30",
		"ON 2030-01-01 at 0:05",
	}
	for _, rule := range valid {
		if _, ok := ParseRule(rule); !ok {
			t.Errorf("ParseRule(%q) = false, want true", rule)
		}
	}

	invalid := []string{
		"",
		"daily at 25:00",
		"daily at 09:60",
		"daily at sometime",
		"every someday at 09:00",
		"every 0 minutes",
		"every 5 fortnights",
		"weekly on monday", // not a supported form
		"0 9 * * *",        // raw cron is not part of the rule language
		"whenever",
		"on 2025-13-40 at 07:30",
		"on 2025-06-12 at 25:00",
		"on june 12 at 07:30",
	}
	for _, rule := range invalid {
		if _, ok := ParseRule(rule); ok {
			t.Errorf("ParseRule(%q) = true, want false", rule)
		}
	}
}

func TestParseRuleDailyNextFire(t *testing.T) {
	t.Parallel()

	sched, ok := ParseRule("daily at 13:30")
	if !ok {
		t.Fatal("ParseRule failed")
	}
	from := time.Date(2025, 6, 10, 13, 0, 0, 0, time.Local)
	next := sched.Next(from)
	want := time.Date(2025, 6, 10, 13, 30, 0, 0, time.Local)
	if !next.Equal(want) {
		t.Fatalf("Next = %v, want %v", next, want)
	}
}

func TestParseRuleWeekdayNextFire(t *testing.T) {
	t.Parallel()

	sched, ok := ParseRule("every wednesday at 08:00")
	if !ok {
		t.Fatal("ParseRule failed")
	}
	// 2025-06-10 is a Tuesday.
	from := time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)
	next := sched.Next(from)
	if next.Weekday() != time.Wednesday || next.Hour() != 8 {
		t.Fatalf("Next = %v, want Wednesday 08:00", next)
	}
}

func TestParseRuleOnceNextFire(t *testing.T) {
	t.Parallel()

	sched, ok := ParseRule("on 2025-06-12 at 07:30")
	if !ok {
		t.Fatal("ParseRule failed")
	}
	at := time.Date(2025, 6, 12, 7, 30, 0, 0, time.Local)

	// The day before, at the same wall-clock time, must not fire: the rule
	// names one instant, not a daily recurrence.
	from := time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)
	if next := sched.Next(from); !next.Equal(at) {
		t.Fatalf("Next(%v) = %v, want %v", from, next, at)
	}

	// Once the instant has passed the schedule never fires again.
	if next := sched.Next(at); !next.IsZero() {
		t.Fatalf("Next after the instant = %v, want zero", next)
	}
}

func TestParseRuleInterval(t *testing.T) {
	t.Parallel()

	sched, ok := ParseRule("every 15 minutes")
	if !ok {
		t.Fatal("ParseRule failed")
	}
	from := time.Now()
	next := sched.Next(from)
	if d := next.Sub(from); d <= 0 || d > 15*time.Minute+time.Second {
		t.Fatalf("interval to next fire = %v, want ≤ 15m", d)
	}
}
