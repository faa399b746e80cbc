package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// AddTask inserts a new calendar-only task. A task with the same id
// already existing is reported as apperr.ErrDuplicate.
func (s *Store) AddTask(t *models.Task) error {
	tagsJSON, _ := json.Marshal(t.Tags)
	_, err := s.conn.Exec(`
		INSERT INTO calendar_tasks (id, text, date, time, duration, tags, priority, status, ics_uid, doc_path, doc_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Text, t.Date, t.Time, t.Duration, string(tagsJSON), string(t.Priority), string(t.Status), t.ICSUID, t.DocumentPath, t.Line)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("state: task %s: %w", t.ID, apperr.ErrDuplicate)
		}
		return fmt.Errorf("state: add task: %w", err)
	}
	return nil
}

// SaveTask inserts or replaces a calendar-only task.
func (s *Store) SaveTask(t *models.Task) error {
	tagsJSON, _ := json.Marshal(t.Tags)
	_, err := s.conn.Exec(`
		INSERT INTO calendar_tasks (id, text, date, time, duration, tags, priority, status, ics_uid, doc_path, doc_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text     = excluded.text,
			date     = excluded.date,
			time     = excluded.time,
			duration = excluded.duration,
			tags     = excluded.tags,
			priority = excluded.priority,
			status   = excluded.status,
			ics_uid  = excluded.ics_uid,
			doc_path = excluded.doc_path,
			doc_line = excluded.doc_line
	`, t.ID, t.Text, t.Date, t.Time, t.Duration, string(tagsJSON), string(t.Priority), string(t.Status), t.ICSUID, t.DocumentPath, t.Line)
	if err != nil {
		return fmt.Errorf("state: save task: %w", err)
	}
	return nil
}

// GetTask returns the task with the given id, or apperr.ErrTargetNotFound.
func (s *Store) GetTask(id string) (*models.Task, error) {
	row := s.conn.QueryRow(`
		SELECT id, text, date, time, duration, tags, priority, status, ics_uid, doc_path, doc_line
		FROM calendar_tasks WHERE id = ?
	`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("state: task %s: %w", id, apperr.ErrTargetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("state: get task: %w", err)
	}
	return t, nil
}

// DeleteTask removes the task with the given id. Deleting an unknown id
// is not an error.
func (s *Store) DeleteTask(id string) error {
	if _, err := s.conn.Exec(`DELETE FROM calendar_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("state: delete task: %w", err)
	}
	return nil
}

// ListTasks returns every stored calendar-only task.
func (s *Store) ListTasks() ([]*models.Task, error) {
	rows, err := s.conn.Query(`
		SELECT id, text, date, time, duration, tags, priority, status, ics_uid, doc_path, doc_line
		FROM calendar_tasks ORDER BY date, time, id
	`)
	if err != nil {
		return nil, fmt.Errorf("state: list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("state: list tasks: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*models.Task, error) {
	var t models.Task
	var tagsJSON, priority, status string
	if err := r.Scan(&t.ID, &t.Text, &t.Date, &t.Time, &t.Duration,
		&tagsJSON, &priority, &status, &t.ICSUID, &t.DocumentPath, &t.Line); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tagsJSON), &t.Tags)
	t.Priority = models.Priority(priority)
	t.Status = models.Status(status)
	t.CalendarOnly = true
	return &t, nil
}
