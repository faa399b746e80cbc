package api

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/engine"
	"github.com/starford/dagaz/internal/ics"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/state"
	"github.com/starford/dagaz/internal/timer"
)

// Service is the facade the HTTP handlers talk to. It joins the
// document-sourced collection (engine), the persisted calendar
// collection (state) and the timer into a single task surface.
type Service struct {
	engine *engine.Engine
	st     *state.Store
	timer  *timer.Service
	broker *sse.Broker
	logger *slog.Logger
}

// NewService creates the API service. broker may be nil, which
// disables event publication.
func NewService(eng *engine.Engine, st *state.Store, tm *timer.Service, broker *sse.Broker, logger *slog.Logger) *Service {
	return &Service{engine: eng, st: st, timer: tm, broker: broker, logger: logger}
}

func (s *Service) publish(kind, id string) {
	if s.broker != nil {
		s.broker.PublishTaskEvent(kind, id)
	}
}

// ListTasks returns the merged collection, document-sourced tasks
// first, optionally filtered by tag and status.
func (s *Service) ListTasks(tag string, status models.Status) ([]*models.Task, error) {
	docTasks := s.engine.Snapshot()
	calTasks, err := s.st.ListTasks()
	if err != nil {
		return nil, err
	}

	merged := make([]*models.Task, 0, len(docTasks)+len(calTasks))
	merged = append(merged, docTasks...)
	merged = append(merged, calTasks...)

	if tag == "" && status == "" {
		return merged, nil
	}
	out := merged[:0]
	for _, t := range merged {
		if tag != "" && !slices.Contains(t.Tags, tag) {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdateDocumentTask applies a field patch to a document-sourced task
// by rewriting its source line. The updated task is returned.
func (s *Service) UpdateDocumentTask(ctx context.Context, req PatchDocumentTaskRequest) (*models.Task, error) {
	task, ok := s.engine.Get(req.ID)
	if !ok {
		return nil, apperr.ErrTargetNotFound
	}

	updates, err := fieldUpdates(req)
	if err != nil {
		return nil, err
	}
	if err := s.engine.WriteBack(ctx, task, updates); err != nil {
		return nil, err
	}

	updated, ok := s.engine.Get(req.ID)
	if !ok {
		return nil, apperr.ErrTargetNotFound
	}
	s.publish("synced", updated.ID)
	return updated, nil
}

func fieldUpdates(req PatchDocumentTaskRequest) (engine.FieldUpdates, error) {
	var u engine.FieldUpdates
	u.Date = req.Date
	u.Time = req.Time
	u.Duration = req.Duration
	if req.Status != nil {
		st := models.Status(*req.Status)
		if !st.Valid() {
			return u, fmt.Errorf("api: unknown status %q: %w", *req.Status, apperr.ErrInvalidInput)
		}
		u.Status = &st
	}
	if req.Priority != nil {
		pr := models.Priority(*req.Priority)
		if pr != "" && !pr.Valid() {
			return u, fmt.Errorf("api: unknown priority %q: %w", *req.Priority, apperr.ErrInvalidInput)
		}
		u.Priority = &pr
	}
	return u, nil
}

// CreateCalendarTask stores a new calendar-only task.
func (s *Service) CreateCalendarTask(req CreateCalendarTaskRequest) (*models.Task, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("api: text is required: %w", apperr.ErrInvalidInput)
	}
	pr := models.Priority(req.Priority)
	if pr != "" && !pr.Valid() {
		return nil, fmt.Errorf("api: unknown priority %q: %w", req.Priority, apperr.ErrInvalidInput)
	}

	task := &models.Task{
		ID:           "calendar-" + uuid.NewString(),
		Text:         req.Text,
		Date:         req.Date,
		Time:         req.Time,
		Duration:     req.Duration,
		Tags:         req.Tags,
		Priority:     pr,
		Status:       models.StatusTodo,
		CalendarOnly: true,
	}
	if err := s.st.AddTask(task); err != nil {
		return nil, err
	}
	s.publish("synced", task.ID)
	return task, nil
}

// UpdateCalendarTask applies a field patch to a stored calendar task.
func (s *Service) UpdateCalendarTask(id string, req UpdateCalendarTaskRequest) (*models.Task, error) {
	task, err := s.st.GetTask(id)
	if err != nil {
		return nil, err
	}

	if req.Text != nil {
		task.Text = *req.Text
	}
	if req.Date != nil {
		task.Date = *req.Date
		if task.Date == "" {
			task.Time = ""
		}
	}
	if req.Time != nil {
		task.Time = *req.Time
	}
	if req.Duration != nil {
		task.Duration = *req.Duration
	}
	if req.Tags != nil {
		task.Tags = *req.Tags
	}
	if req.Status != nil {
		st := models.Status(*req.Status)
		if !st.Valid() {
			return nil, fmt.Errorf("api: unknown status %q: %w", *req.Status, apperr.ErrInvalidInput)
		}
		task.Status = st
	}
	if req.Priority != nil {
		pr := models.Priority(*req.Priority)
		if pr != "" && !pr.Valid() {
			return nil, fmt.Errorf("api: unknown priority %q: %w", *req.Priority, apperr.ErrInvalidInput)
		}
		task.Priority = pr
	}

	if err := s.st.SaveTask(task); err != nil {
		return nil, err
	}
	s.publish("synced", task.ID)
	return task, nil
}

// DeleteCalendarTask removes a stored calendar task.
func (s *Service) DeleteCalendarTask(id string) error {
	if _, err := s.st.GetTask(id); err != nil {
		return err
	}
	if err := s.st.DeleteTask(id); err != nil {
		return err
	}
	s.publish("removed", id)
	return nil
}

// ImportICS parses an iCalendar payload, expands recurring events, and
// stores every occurrence whose UID is not already present.
func (s *Service) ImportICS(content string) (ImportResponse, error) {
	var resp ImportResponse

	events := ics.Parse(content)
	incoming := ics.ToTasks(events)

	existing, err := s.st.ListTasks()
	if err != nil {
		return resp, err
	}
	unique, duplicates := ics.SplitDuplicates(incoming, existing)
	resp.Duplicates = len(duplicates)

	for _, t := range unique {
		if err := s.st.AddTask(t); err != nil {
			return resp, fmt.Errorf("api: import %s: %w", t.ICSUID, err)
		}
		resp.Imported++
		s.publish("synced", t.ID)
	}

	s.logger.Info("ics import", "events", len(events), "imported", resp.Imported, "duplicates", resp.Duplicates)
	return resp, nil
}

// resolveTask finds a task by id in either collection.
func (s *Service) resolveTask(id string) (*models.Task, error) {
	if t, ok := s.engine.Get(id); ok {
		return t, nil
	}
	return s.st.GetTask(id)
}

// StartTimer begins timing the given task.
func (s *Service) StartTimer(taskID string) (*models.Task, error) {
	source, err := s.resolveTask(taskID)
	if err != nil {
		return nil, err
	}
	derived, err := s.timer.Start(source)
	if err != nil {
		return nil, err
	}
	s.publish("synced", derived.ID)
	return derived, nil
}

// PauseTimer suspends the running session.
func (s *Service) PauseTimer() error {
	if err := s.timer.Pause(); err != nil {
		return err
	}
	if sess := s.timer.Active(); sess != nil {
		s.publish("synced", sess.DerivedTaskID)
	}
	return nil
}

// ResumeTimer restarts a paused session.
func (s *Service) ResumeTimer() error {
	return s.timer.Resume()
}

// StopTimer finalizes the session and returns the recorded minutes.
func (s *Service) StopTimer() (int, error) {
	sess := s.timer.Active()
	minutes, err := s.timer.Stop()
	if err != nil {
		return 0, err
	}
	if sess != nil {
		s.publish("synced", sess.DerivedTaskID)
	}
	return minutes, nil
}

// ToggleTimer pauses or resumes the session when it already tracks the
// given task, and starts a new session otherwise.
func (s *Service) ToggleTimer(taskID string) (*models.Task, error) {
	source, err := s.resolveTask(taskID)
	if err != nil {
		return nil, err
	}
	derived, err := s.timer.Toggle(source)
	if err != nil {
		return nil, err
	}
	if derived != nil {
		s.publish("synced", derived.ID)
	}
	return derived, nil
}

// TimerStatus reports the current session with elapsed wall-clock time.
func (s *Service) TimerStatus() TimerStatusResponse {
	sess := s.timer.Active()
	if sess == nil {
		return TimerStatusResponse{Active: false}
	}
	elapsed := sess.PausedAccum
	if !sess.Paused {
		elapsed += time.Now().UnixMilli() - sess.StartedAt
	}
	return TimerStatusResponse{Active: true, Session: sess, ElapsedMs: elapsed}
}

// CollapsedTags returns the persisted sidebar collapse state.
func (s *Service) CollapsedTags() ([]string, error) {
	return s.st.CollapsedTags()
}

// SetCollapsedTags persists the sidebar collapse state.
func (s *Service) SetCollapsedTags(tags []string) error {
	return s.st.SetCollapsedTags(tags)
}
