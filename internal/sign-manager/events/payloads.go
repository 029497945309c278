package events

import "time"

// DisplayExecutedEvent is published to Kafka after every successful
// transmission to the sign. It is an audit record; nothing in the scheduler
// depends on it.
type DisplayExecutedEvent struct {
	ScheduleID uint      `json:"schedule_id"`
	Name       string    `json:"name"`
	Command    string    `json:"command"`
	Response   string    `json:"response,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}
