package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	signDB "sign-scheduler-service/internal/sign-manager/db"
)

// Trigger is the engine-facing firing rule resolved from a schedule row.
// The scheduler never sees raw ScheduleItem rows, only triggers.
type Trigger interface {
	// JobDefinition expresses the trigger in gocron terms.
	JobDefinition() gocron.JobDefinition
}

// OnceTrigger fires exactly once at an absolute local timestamp.
type OnceTrigger struct {
	At time.Time
}

func (t OnceTrigger) JobDefinition() gocron.JobDefinition {
	return gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(t.At))
}

// WeeklyTrigger fires on every matching weekday at Hour:Minute local time,
// recurring until removed.
type WeeklyTrigger struct {
	Weekdays []time.Weekday
	Hour     int
	Minute   int
}

func (t WeeklyTrigger) JobDefinition() gocron.JobDefinition {
	first, rest := t.Weekdays[0], t.Weekdays[1:]
	return gocron.WeeklyJob(1,
		gocron.NewWeekdays(first, rest...),
		gocron.NewAtTimes(gocron.NewAtTime(uint(t.Hour), uint(t.Minute), 0)),
	)
}

// ResolveTrigger maps a schedule row to its firing rule. Resolution is
// all-or-nothing: on error no trigger is produced and nothing is registered
// for the row.
//
// Stored weekdays use 0=Monday..6=Sunday; time.Weekday uses 0=Sunday. The
// conversion happens here and nowhere else.
func ResolveTrigger(item *signDB.ScheduleItem) (Trigger, error) {
	if !item.IsRecurring {
		if item.ScheduledDatetime == nil {
			return nil, fmt.Errorf("schedule %d: %w", item.ID, ErrMalformedTimestamp)
		}
		return OnceTrigger{At: *item.ScheduledDatetime}, nil
	}

	days, err := signDB.ParseWeekdayCSV(item.RecurringWeekdays)
	if err != nil {
		return nil, fmt.Errorf("schedule %d: %w: %v", item.ID, ErrMissingRecurrenceFields, err)
	}
	if item.RecurringTime == "" {
		return nil, fmt.Errorf("schedule %d: %w", item.ID, ErrMissingRecurrenceFields)
	}
	hour, minute, err := parseTimeOfDay(item.RecurringTime)
	if err != nil {
		return nil, fmt.Errorf("schedule %d: %w: %v", item.ID, ErrMalformedTime, err)
	}

	weekdays := make([]time.Weekday, len(days))
	for i, day := range days {
		weekdays[i] = time.Weekday((day + 1) % 7)
	}
	return WeeklyTrigger{Weekdays: weekdays, Hour: hour, Minute: minute}, nil
}

// parseTimeOfDay parses "HH:MM" with 0<=H<=23 and 0<=M<=59. Single-digit
// hours ("9:30") are accepted, matching what schedule forms have produced
// historically.
func parseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%q is not HH:MM", s)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %q out of range 0-23", parts[0])
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %q out of range 0-59", parts[1])
	}
	return hour, minute, nil
}
