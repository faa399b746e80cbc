// Package engine owns the live collection of document-sourced tasks and
// keeps it reconciled against the vault through full scans, incremental
// change notifications, and single-line write-backs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/checksum"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/parser"
	"github.com/starford/dagaz/internal/storage"
)

// Subscriber receives a consistent snapshot of the whole collection
// after every successful mutation. Snapshots are deep copies; holding
// on to them is safe.
type Subscriber func(tasks []*models.Task)

// FieldUpdates describes a write-back patch. A nil field is left
// untouched; a pointer to the zero value clears the field.
type FieldUpdates struct {
	Date     *string
	Time     *string
	Duration *int
	Status   *models.Status
	Priority *models.Priority
}

// Engine is the single writer of the document-sourced task collection.
type Engine struct {
	store  storage.Provider
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*models.Task // by task id
	subs  []Subscriber

	// Per-document guards. issued hands out a generation per incoming
	// change; applied records the newest generation committed. A read
	// that completes out of order carries a stale generation and is
	// discarded instead of overwriting newer state.
	issued  map[string]uint64
	applied map[string]uint64

	// selfWrites maps path → checksum of content this engine itself
	// just wrote, so the watcher echo of a write-back is swallowed
	// instead of triggering a redundant re-decode.
	selfWrites map[string]string
}

// New creates an engine over the given document store.
func New(store storage.Provider, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		logger:     logger,
		tasks:      make(map[string]*models.Task),
		issued:     make(map[string]uint64),
		applied:    make(map[string]uint64),
		selfWrites: make(map[string]string),
	}
}

// Subscribe registers fn to be called after every successful mutation.
// Subscriber order is unspecified.
func (e *Engine) Subscribe(fn Subscriber) {
	e.mu.Lock()
	e.subs = append(e.subs, fn)
	e.mu.Unlock()
}

// Snapshot returns a deep copy of the current collection, ordered by
// document path and line.
func (e *Engine) Snapshot() []*models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Get returns a copy of the task with the given id.
func (e *Engine) Get(id string) (*models.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// FullScan enumerates every vault document, decodes every line, and
// replaces the whole collection. Used once at startup.
func (e *Engine) FullScan(ctx context.Context) error {
	metas, err := e.store.List("")
	if err != nil {
		return fmt.Errorf("engine: scan list: %w", err)
	}

	fresh := make(map[string]*models.Task)
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := e.store.Read(m.Path)
		if err != nil {
			e.logger.Warn("scan: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		for _, t := range decodeDocument(m.Path, data) {
			fresh[t.ID] = t
		}
	}

	e.mu.Lock()
	e.tasks = fresh
	e.mu.Unlock()

	e.logger.Info("scan: complete",
		slog.Int("documents", len(metas)),
		slog.Int("tasks", len(fresh)))
	e.notify()
	return nil
}

// Changed re-reads the document at path and atomically replaces every
// task sourced from it. Stale completions (an older read finishing
// after a newer one was applied) are discarded.
func (e *Engine) Changed(ctx context.Context, path string) error {
	gen := e.nextGen(path)

	data, err := e.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// The document vanished between the event and the read; the
			// delete notification will follow.
			return nil
		}
		return fmt.Errorf("engine: read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.applyDocument(path, gen, data)
	return nil
}

// Created decodes a newly created document and adds any discovered
// tasks. Subscribers are only notified when the document actually
// contains tasks.
func (e *Engine) Created(ctx context.Context, path string) error {
	gen := e.nextGen(path)

	data, err := e.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("engine: read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	decoded := decodeDocument(path, data)
	if len(decoded) == 0 {
		// Still consume the generation so a later change is not seen
		// as stale.
		e.mu.Lock()
		if gen > e.applied[path] {
			e.applied[path] = gen
		}
		e.mu.Unlock()
		return nil
	}
	e.applyDocument(path, gen, data)
	return nil
}

// Deleted removes every task sourced from path and returns how many
// were removed, for caller-side notification.
func (e *Engine) Deleted(path string) int {
	e.mu.Lock()
	removed := 0
	for id, t := range e.tasks {
		if t.DocumentPath == path {
			delete(e.tasks, id)
			removed++
		}
	}
	// Invalidate any in-flight read of the dead document.
	gen := e.issued[path] + 1
	e.issued[path] = gen
	e.applied[path] = gen
	delete(e.selfWrites, path)
	e.mu.Unlock()

	if removed > 0 {
		e.logger.Info("sync: document deleted",
			slog.String("path", path), slog.Int("removed", removed))
		e.notify()
	}
	return removed
}

// Renamed rewrites the source location (and therefore the id) of every
// task from oldPath. Because ids are path-derived, external references
// keyed by an old id, such as an active timer's source task, become
// stale; this engine does not migrate them.
func (e *Engine) Renamed(oldPath, newPath string) {
	e.mu.Lock()
	moved := 0
	for id, t := range e.tasks {
		if t.DocumentPath != oldPath {
			continue
		}
		delete(e.tasks, id)
		t.DocumentPath = newPath
		t.ID = models.DocumentTaskID(newPath, t.Line)
		e.tasks[t.ID] = t
		moved++
	}
	e.issued[newPath] = e.issued[oldPath]
	e.applied[newPath] = e.applied[oldPath]
	delete(e.issued, oldPath)
	delete(e.applied, oldPath)
	delete(e.selfWrites, oldPath)
	e.mu.Unlock()

	if moved > 0 {
		e.logger.Info("sync: document renamed",
			slog.String("from", oldPath), slog.String("to", newPath),
			slog.Int("tasks", moved))
		e.notify()
	}
}

// WriteBack patches the single source line of a document-sourced task
// and persists the whole document. The in-memory collection is only
// updated after the write lands; on any failure it is left untouched.
func (e *Engine) WriteBack(ctx context.Context, task *models.Task, updates FieldUpdates) error {
	// Calendar-only tasks may carry a source-location reference for
	// navigation; only genuinely document-sourced tasks are writable.
	if task.CalendarOnly || !task.DocumentSourced() {
		return fmt.Errorf("engine: write-back on calendar-only task %s", task.ID)
	}

	data, err := e.store.Read(task.DocumentPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("engine: %s: %w", task.DocumentPath, apperr.ErrTargetNotFound)
		}
		return fmt.Errorf("engine: read %s: %w", task.DocumentPath, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")
	if task.Line < 0 || task.Line >= len(lines) {
		return fmt.Errorf("engine: %s line %d: %w", task.DocumentPath, task.Line, apperr.ErrTargetNotFound)
	}

	current, ok := parser.Decode(lines[task.Line], task.DocumentPath, task.Line)
	if !ok {
		return fmt.Errorf("engine: %s line %d: %w", task.DocumentPath, task.Line, apperr.ErrEditConflict)
	}

	applyUpdates(current, updates)
	lines[task.Line] = parser.Encode(current)
	content := []byte(strings.Join(lines, "\n"))

	// Mark our own write before issuing it, so the watcher echo that
	// may arrive immediately after is recognized and swallowed.
	cs := checksum.Sum(content)
	e.mu.Lock()
	e.selfWrites[task.DocumentPath] = cs
	e.mu.Unlock()

	if err := e.store.Write(task.DocumentPath, content); err != nil {
		e.mu.Lock()
		delete(e.selfWrites, task.DocumentPath)
		e.mu.Unlock()
		return fmt.Errorf("engine: write %s: %w", task.DocumentPath, err)
	}

	e.mu.Lock()
	e.tasks[current.ID] = current
	e.mu.Unlock()

	e.logger.Debug("sync: write-back",
		slog.String("path", task.DocumentPath), slog.Int("line", task.Line))
	e.notify()
	return nil
}

// DocumentPaths returns the set of paths currently owning tasks, for
// the watcher's rename reconciliation.
func (e *Engine) DocumentPaths() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]bool)
	for _, t := range e.tasks {
		out[t.DocumentPath] = true
	}
	return out
}

func (e *Engine) nextGen(path string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.issued[path]++
	return e.issued[path]
}

// applyDocument commits a freshly decoded document unless a newer
// generation has already been applied for the same path.
func (e *Engine) applyDocument(path string, gen uint64, data []byte) {
	decoded := decodeDocument(path, data)

	e.mu.Lock()
	if gen <= e.applied[path] {
		e.mu.Unlock()
		e.logger.Debug("sync: stale change discarded", slog.String("path", path))
		return
	}
	e.applied[path] = gen

	if cs, ok := e.selfWrites[path]; ok && cs == checksum.Sum(data) {
		// Echo of our own write-back; memory is already current.
		delete(e.selfWrites, path)
		e.mu.Unlock()
		return
	}

	for id, t := range e.tasks {
		if t.DocumentPath == path {
			delete(e.tasks, id)
		}
	}
	for _, t := range decoded {
		e.tasks[t.ID] = t
	}
	e.mu.Unlock()

	e.logger.Debug("sync: document reconciled",
		slog.String("path", path), slog.Int("tasks", len(decoded)))
	e.notify()
}

// notify hands a consistent snapshot to every subscriber. It must be
// called without the lock held.
func (e *Engine) notify() {
	e.mu.Lock()
	snapshot := e.snapshotLocked()
	subs := append([]Subscriber(nil), e.subs...)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

func (e *Engine) snapshotLocked() []*models.Task {
	out := make([]*models.Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentPath != out[j].DocumentPath {
			return out[i].DocumentPath < out[j].DocumentPath
		}
		return out[i].Line < out[j].Line
	})
	return out
}

func decodeDocument(path string, data []byte) []*models.Task {
	var out []*models.Task
	for i, line := range strings.Split(string(data), "\n") {
		if t, ok := parser.Decode(line, path, i); ok {
			out = append(out, t)
		}
	}
	return out
}

func applyUpdates(t *models.Task, u FieldUpdates) {
	if u.Date != nil {
		t.Date = *u.Date
		if t.Date == "" {
			// Removing the date unschedules the task entirely.
			t.Time = ""
		}
	}
	if u.Time != nil {
		t.Time = *u.Time
	}
	if u.Duration != nil {
		t.Duration = *u.Duration
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
}
