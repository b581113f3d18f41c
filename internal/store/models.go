package store

import "time"

// Task is a goal the scheduler re-runs every IntervalSeconds. An interval
// of zero marks a one-shot task.
type Task struct {
	ID              int64
	ChatID          string
	Description     string
	IntervalSeconds int
}

// Event is an entry in the local calendar.
type Event struct {
	ID     int64     `json:"id"`
	ChatID string    `json:"-"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Notes  string    `json:"notes,omitempty"`
}
