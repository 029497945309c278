package db

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Template is a named, ordered list of display items, stored as the
// canonical JSON payload (see PayloadSchema).
type Template struct {
	gorm.Model
	Name    string `json:"name" gorm:"index"`
	Payload string `json:"payload" gorm:"type:json"`
}

// ScheduleItem binds a template to a firing rule: either a one-shot
// timestamp, or a weekly recurrence over a weekday set at a time of day.
//
// Weekdays are stored as a csv of ints with 0=Monday..6=Sunday; the time of
// day lives in RecurringTime ("HH:MM"), never in ScheduledDatetime's time
// component.
type ScheduleItem struct {
	gorm.Model
	Name              string     `json:"name" gorm:"index"`
	ScheduledDatetime *time.Time `json:"scheduled_datetime" gorm:"index"`
	IsRecurring       bool       `json:"is_recurring" gorm:"index"`
	RecurringWeekdays string     `json:"recurring_weekdays"`
	RecurringTime     string     `json:"recurring_time"`
	TemplateID        *uint      `json:"template_id" gorm:"index"`
}

// LastRunID is the fixed primary key of the singleton last-run marker row.
const LastRunID = 1

// LastRun is the singleton marker recording the most recently executed
// schedule, overwritten after every successful transmission. Crash recovery
// reads it at startup to replay a display that may have been interrupted.
type LastRun struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	LastRunDatetime time.Time `json:"last_run_datetime"`
	ScheduleID      uint      `json:"schedule_id"`
}

// ParseWeekdayCSV parses a "0,2,4" weekday list (0=Monday..6=Sunday).
// Returns an error on an empty list or an out-of-range day.
func ParseWeekdayCSV(csv string) ([]int, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, fmt.Errorf("empty weekday list")
	}
	var days []int
	for _, part := range strings.Split(csv, ",") {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		if day < 0 || day > 6 {
			return nil, fmt.Errorf("weekday %d out of range 0-6", day)
		}
		days = append(days, day)
	}
	return days, nil
}

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayNames renders a weekday csv as human-readable names, e.g.
// "0,2,4" -> "Mon, Wed, Fri". Malformed input is returned unchanged.
func WeekdayNames(csv string) string {
	days, err := ParseWeekdayCSV(csv)
	if err != nil {
		return csv
	}
	names := make([]string, len(days))
	for i, day := range days {
		names[i] = weekdayNames[day]
	}
	return strings.Join(names, ", ")
}
