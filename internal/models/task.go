// Package models defines the domain types for Dagaz.
package models

import (
	"fmt"
	"time"
)

// Status is the checkbox state of a task.
type Status string

// Task statuses. The set is closed: the codec rejects any other marker.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Priority is the optional urgency level of a task. Empty means unset.
type Priority string

// Task priorities.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Frequency is the repeat unit of a recurrence rule.
type Frequency string

// Recurrence frequencies, matching the iCalendar FREQ values.
const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

// RecurrenceRule is a bounded subset of an iCalendar RRULE:
// FREQ/INTERVAL/COUNT/UNTIL/BYDAY/BYMONTHDAY only. Count and Until are
// mutually exclusive bounds; zero values mean unset.
type RecurrenceRule struct {
	Freq       Frequency
	Interval   int
	Count      int
	Until      time.Time
	ByDay      []string // two-letter weekday tokens: MO..SU
	ByMonthDay []int
}

// Task is the central entity: a todo item either extracted from a line
// of a vault document or living only in the calendar store.
//
// CalendarOnly is the authoritative discriminant between the two:
// calendar-only tasks may still carry a DocumentPath for navigation
// (timer-derived tasks point at the line they were started from), but
// only tasks with CalendarOnly unset are written back to documents.
type Task struct {
	ID   string `json:"id"`
	Text string `json:"text"`

	Date     string `json:"date,omitempty"` // YYYY-MM-DD
	Time     string `json:"time,omitempty"` // HH:MM, 24-hour
	Duration int    `json:"duration,omitempty"` // minutes

	Tags     []string `json:"tags,omitempty"`
	Priority Priority `json:"priority,omitempty"`
	Status   Status   `json:"status"`

	DocumentPath string `json:"documentPath,omitempty"`
	Line         int    `json:"line"`

	CalendarOnly bool   `json:"calendarOnly,omitempty"`
	ICSUID       string `json:"icsUid,omitempty"` // origin UID for imported tasks
}

// DocumentSourced reports whether the task's authoritative form is a
// line in a vault document.
func (t *Task) DocumentSourced() bool {
	return t.DocumentPath != ""
}

// Clone returns a deep copy, so collection snapshots handed to
// subscribers cannot alias engine-owned state.
func (t *Task) Clone() *Task {
	c := *t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	return &c
}

// DocumentTaskID derives the stable identifier of a document-sourced
// task. It changes when the document is renamed, which is why renames
// invalidate external references held by callers.
func DocumentTaskID(path string, line int) string {
	return fmt.Sprintf("%s:%d", path, line)
}

// TimerSession is the single process-wide elapsed-time session.
// Durations are in milliseconds of wall-clock time.
type TimerSession struct {
	SourceTaskID  string `json:"sourceTaskId"`
	DerivedTaskID string `json:"derivedTaskId"`
	StartedAt     int64  `json:"startedAt"` // unix ms of last (re)start
	PausedAccum   int64  `json:"pausedAccum"` // ms accumulated across pauses
	Paused        bool   `json:"paused"`
}

// DocumentInfo is a lightweight representation returned by store list
// operations.
type DocumentInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
