package services

import "errors"

// Resolution errors. A schedule row that fails resolution is logged and left
// unscheduled; it never aborts resolution of other rows and never reaches
// the engine.
var (
	// ErrMalformedTimestamp: a one-shot row without a usable scheduled datetime.
	ErrMalformedTimestamp = errors.New("malformed scheduled datetime")

	// ErrMissingRecurrenceFields: a recurring row without a weekday set or
	// time of day.
	ErrMissingRecurrenceFields = errors.New("recurring schedule missing weekdays or time")

	// ErrMalformedTime: a recurring row whose time of day is not a valid HH:MM.
	ErrMalformedTime = errors.New("malformed recurring time")
)
