package api

import (
	"github.com/starford/dagaz/internal/models"
)

// PatchDocumentTaskRequest is the body of PATCH /tasks/document.
// A nil field is left untouched; a present zero value clears the field.
type PatchDocumentTaskRequest struct {
	ID       string  `json:"id"`
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	Duration *int    `json:"duration"`
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
}

// CreateCalendarTaskRequest is the body of POST /tasks/calendar.
type CreateCalendarTaskRequest struct {
	Text     string   `json:"text"`
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	Duration int      `json:"duration"`
	Tags     []string `json:"tags"`
	Priority string   `json:"priority"`
}

// UpdateCalendarTaskRequest is the body of PATCH /tasks/calendar/{id}.
// Same patch semantics as the document variant.
type UpdateCalendarTaskRequest struct {
	Text     *string   `json:"text"`
	Date     *string   `json:"date"`
	Time     *string   `json:"time"`
	Duration *int      `json:"duration"`
	Tags     *[]string `json:"tags"`
	Status   *string   `json:"status"`
	Priority *string   `json:"priority"`
}

// TaskListResponse wraps the merged task collection.
type TaskListResponse struct {
	Tasks []*models.Task `json:"tasks"`
	Total int            `json:"total"`
}

// ImportResponse summarizes an ICS import.
type ImportResponse struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
}

// TimerActionRequest carries the task a timer action applies to.
type TimerActionRequest struct {
	TaskID string `json:"taskId"`
}

// TimerStatusResponse reports the current timer session. ElapsedMs is
// computed at response time.
type TimerStatusResponse struct {
	Active    bool                 `json:"active"`
	Session   *models.TimerSession `json:"session,omitempty"`
	ElapsedMs int64                `json:"elapsedMs,omitempty"`
}

// CollapsedTagsBody is both the GET response and PUT request for the
// persisted sidebar collapse state.
type CollapsedTagsBody struct {
	Tags []string `json:"tags"`
}
