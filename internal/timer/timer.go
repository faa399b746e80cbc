// Package timer tracks elapsed time for a single task at a time.
//
// Starting a timer materializes a calendar-only task at the current
// date and time; the elapsed time is written into that task's duration
// on pause and stop. At most one session exists per process, and the
// session survives restarts through the state store.
package timer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/state"
)

// Service owns the single timer session.
type Service struct {
	st              *state.Store
	logger          *slog.Logger
	defaultDuration int

	mu      sync.Mutex
	session *models.TimerSession

	now func() time.Time
}

// NewService creates a timer service. defaultDuration is the minutes
// assigned to a freshly created derived task before any time elapses.
func NewService(st *state.Store, defaultDuration int, logger *slog.Logger) *Service {
	return &Service{
		st:              st,
		logger:          logger,
		defaultDuration: defaultDuration,
		now:             time.Now,
	}
}

// Active returns a copy of the running session, or nil when idle.
func (s *Service) Active() *models.TimerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// Start begins timing the given task. Any running session is stopped
// and finalized first. The returned task is the calendar-only task
// created to hold the elapsed time.
func (s *Service) Start(source *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(source)
}

func (s *Service) startLocked(source *models.Task) (*models.Task, error) {
	if s.session != nil {
		if _, err := s.stopLocked(); err != nil {
			return nil, err
		}
	}

	now := s.now()
	derived := &models.Task{
		ID:           "calendar-" + uuid.NewString(),
		Text:         source.Text,
		Date:         now.Format("2006-01-02"),
		Time:         now.Format("15:04"),
		Duration:     s.defaultDuration,
		Priority:     source.Priority,
		Status:       models.StatusTodo,
		CalendarOnly: true,
		// Source location is kept so the UI can jump back to the line
		// the timer was started from.
		DocumentPath: source.DocumentPath,
		Line:         source.Line,
	}
	if source.Tags != nil {
		derived.Tags = append([]string(nil), source.Tags...)
	}

	if err := s.st.AddTask(derived); err != nil {
		return nil, fmt.Errorf("timer: create derived task: %w", err)
	}

	s.session = &models.TimerSession{
		SourceTaskID:  source.ID,
		DerivedTaskID: derived.ID,
		StartedAt:     now.UnixMilli(),
		PausedAccum:   0,
		Paused:        false,
	}
	if err := s.st.SaveSession(s.session); err != nil {
		return nil, fmt.Errorf("timer: persist session: %w", err)
	}

	s.logger.Info("timer started", "source", source.ID, "derived", derived.ID)
	return derived, nil
}

// Pause suspends the running session and writes the elapsed minutes so
// far into the derived task. Pausing an idle or already paused session
// is a no-op.
func (s *Service) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseLocked()
}

func (s *Service) pauseLocked() error {
	if s.session == nil || s.session.Paused {
		return nil
	}

	now := s.now()
	s.session.PausedAccum += now.UnixMilli() - s.session.StartedAt
	s.session.StartedAt = now.UnixMilli()
	s.session.Paused = true

	if err := s.writeDuration(s.session.DerivedTaskID, ceilMinutes(s.session.PausedAccum)); err != nil {
		return err
	}
	if err := s.st.SaveSession(s.session); err != nil {
		return fmt.Errorf("timer: persist session: %w", err)
	}
	return nil
}

// Resume restarts a paused session. Resuming an idle or running
// session is a no-op.
func (s *Service) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeLocked()
}

func (s *Service) resumeLocked() error {
	if s.session == nil || !s.session.Paused {
		return nil
	}

	s.session.StartedAt = s.now().UnixMilli()
	s.session.Paused = false

	if err := s.st.SaveSession(s.session); err != nil {
		return fmt.Errorf("timer: persist session: %w", err)
	}
	return nil
}

// Stop finalizes the session: the total elapsed time, rounded up to a
// whole minute, is written into the derived task and the session is
// cleared. It returns the recorded minutes, or 0 when idle.
func (s *Service) Stop() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Service) stopLocked() (int, error) {
	if s.session == nil {
		return 0, nil
	}

	total := s.session.PausedAccum
	if !s.session.Paused {
		total += s.now().UnixMilli() - s.session.StartedAt
	}
	minutes := ceilMinutes(total)

	derivedID := s.session.DerivedTaskID
	if err := s.writeDuration(derivedID, minutes); err != nil {
		return 0, err
	}

	s.session = nil
	if err := s.st.SaveSession(nil); err != nil {
		return 0, fmt.Errorf("timer: clear session: %w", err)
	}

	s.logger.Info("timer stopped", "derived", derivedID, "minutes", minutes)
	return minutes, nil
}

// Toggle flips pause/resume when the session belongs to the given
// task, and starts a fresh session otherwise. It returns the derived
// task when a new session was started.
func (s *Service) Toggle(source *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && s.session.SourceTaskID == source.ID {
		if s.session.Paused {
			return nil, s.resumeLocked()
		}
		return nil, s.pauseLocked()
	}
	return s.startLocked(source)
}

// Restore loads a persisted session at startup. A session whose
// derived task no longer exists is discarded.
func (s *Service) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.st.Session()
	if err != nil {
		return fmt.Errorf("timer: load session: %w", err)
	}
	if sess == nil {
		return nil
	}

	if _, err := s.st.GetTask(sess.DerivedTaskID); err != nil {
		s.logger.Warn("discarding stale timer session", "derived", sess.DerivedTaskID)
		if err := s.st.SaveSession(nil); err != nil {
			return fmt.Errorf("timer: clear stale session: %w", err)
		}
		return nil
	}

	s.session = sess
	s.logger.Info("timer session restored", "derived", sess.DerivedTaskID, "paused", sess.Paused)
	return nil
}

// Flush stops any running session. Called on shutdown so elapsed time
// is not lost.
func (s *Service) Flush() error {
	_, err := s.Stop()
	return err
}

func (s *Service) writeDuration(taskID string, minutes int) error {
	task, err := s.st.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("timer: load derived task: %w", err)
	}
	task.Duration = minutes
	if err := s.st.SaveTask(task); err != nil {
		return fmt.Errorf("timer: save derived task: %w", err)
	}
	return nil
}

// ceilMinutes rounds a millisecond span up to whole minutes, so even a
// one-second session records a minute of work.
func ceilMinutes(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int((ms + 59999) / 60000)
}
