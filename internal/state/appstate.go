package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/dagaz/internal/models"
)

const (
	keyTimerSession  = "timer_session"
	keyCollapsedTags = "collapsed_tags"
)

// SaveSession persists the active timer session. A nil session clears
// the stored one.
func (s *Store) SaveSession(sess *models.TimerSession) error {
	if sess == nil {
		if _, err := s.conn.Exec(`DELETE FROM app_state WHERE key = ?`, keyTimerSession); err != nil {
			return fmt.Errorf("state: clear session: %w", err)
		}
		return nil
	}
	return s.putJSON(keyTimerSession, sess)
}

// Session returns the stored timer session, or nil when none is active.
func (s *Store) Session() (*models.TimerSession, error) {
	var sess models.TimerSession
	ok, err := s.getJSON(keyTimerSession, &sess)
	if err != nil || !ok {
		return nil, err
	}
	return &sess, nil
}

// SetCollapsedTags replaces the persisted collapsed-tag list.
func (s *Store) SetCollapsedTags(tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	return s.putJSON(keyCollapsedTags, tags)
}

// CollapsedTags returns the persisted collapsed-tag list.
func (s *Store) CollapsedTags() ([]string, error) {
	var tags []string
	if _, err := s.getJSON(keyCollapsedTags, &tags); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func (s *Store) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: marshal %s: %w", key, err)
	}
	_, err = s.conn.Exec(`
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(data))
	if err != nil {
		return fmt.Errorf("state: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(key string, v any) (bool, error) {
	var raw string
	err := s.conn.QueryRow(`SELECT value FROM app_state WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("state: get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("state: unmarshal %s: %w", key, err)
	}
	return true, nil
}
