// Package scheduler – dsl.go parses the textual schedule rules used by
// recurring events into cron schedules. Unrecognized rules simply fail to
// parse; they never panic or error out of the caller.
package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Supported rule forms:
//
//	"daily at HH:MM"
//	"every <weekday> at HH:MM"
//	"every N minutes|hours|days"
//	"on YYYY-MM-DD at HH:MM" (fires once, at that local instant)
var (
	reDailyAt   = regexp.MustCompile(`^daily\s+at\s+(\d{1,2}):(\d{2})$`)
	reWeekdayAt = regexp.MustCompile(`^every\s+(\w+)\s+at\s+(\d{1,2}):(\d{2})$`)
	reInterval  = regexp.MustCompile(`^every\s+(\d+)\s+(minute|hour|day)s?$`)
	reOnceAt    = regexp.MustCompile(`^on\s+(\d{4}-\d{2}-\d{2})\s+at\s+(\d{1,2}:\d{2})$`)
)

// onceSchedule fires exactly once, at a fixed local instant. After that
// instant has passed, Next returns the zero time, which cron treats as
// "never".
type onceSchedule struct {
	at time.Time
}

func (s onceSchedule) Next(t time.Time) time.Time {
	if s.at.After(t) {
		return s.at
	}
	return time.Time{}
}

// ParseRule interprets a schedule rule and returns the trigger schedule.
// ok is false when the rule does not match any supported form or has
// out-of-range components.
func ParseRule(rule string) (cron.Schedule, bool) {
	normalized := strings.ToLower(strings.TrimSpace(rule))
	if normalized == "" {
		return nil, false
	}

	if m := reDailyAt.FindStringSubmatch(normalized); m != nil {
		h, minute, ok := clockComponents(m[1], m[2])
		if !ok {
			return nil, false
		}
		return mustCron(fmt.Sprintf("%d %d * * *", minute, h)), true
	}

	if m := reWeekdayAt.FindStringSubmatch(normalized); m != nil {
		dow := dayOfWeek(m[1])
		if dow < 0 {
			return nil, false
		}
		h, minute, ok := clockComponents(m[2], m[3])
		if !ok {
			return nil, false
		}
		return mustCron(fmt.Sprintf("%d %d * * %d", minute, h, dow)), true
	}

	if m := reOnceAt.FindStringSubmatch(normalized); m != nil {
		at, err := time.ParseInLocation("2006-01-02 15:04", m[1]+" "+m[2], time.Local)
		if err != nil {
			return nil, false
		}
		return onceSchedule{at: at}, true
	}

	if m := reInterval.FindStringSubmatch(normalized); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n <= 0 {
			return nil, false
		}
		var unit time.Duration
		switch m[2] {
		case "minute":
			unit = time.Minute
		case "hour":
			unit = time.Hour
		case "day":
			unit = 24 * time.Hour
		}
		return cron.Every(time.Duration(n) * unit), true
	}

	return nil, false
}

// mustCron parses a cron expression we generated ourselves.
func mustCron(spec string) cron.Schedule {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		panic(fmt.Sprintf("scheduler: bad generated cron spec %q: %v", spec, err))
	}
	return sched
}

func clockComponents(hs, ms string) (int, int, bool) {
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// dayOfWeek converts a day name to the cron day-of-week number (0=Sunday).
// Returns -1 for unknown names.
func dayOfWeek(day string) int {
	switch strings.ToLower(day) {
	case "sunday", "sun":
		return 0
	case "monday", "mon":
		return 1
	case "tuesday", "tue":
		return 2
	case "wednesday", "wed":
		return 3
	case "thursday", "thu":
		return 4
	case "friday", "fri":
		return 5
	case "saturday", "sat":
		return 6
	default:
		return -1
	}
}
