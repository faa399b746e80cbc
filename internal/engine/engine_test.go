package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/testutil"
)

const docA = `# Inbox

- [ ] Task one ⏳2025-10-06 #work
- [ ] Task two
`

const docB = `- [ ] Alpha
- [>] Beta
- [x] Gamma
`

func newTestEngine(t *testing.T) (*Engine, *storage.FS) {
	t.Helper()
	_, store := testutil.TestVault(t)
	return New(store, testutil.Logger()), store
}

func seed(t *testing.T, store *storage.FS, path, content string) {
	t.Helper()
	if err := store.Write(path, []byte(content)); err != nil {
		t.Fatal(err)
	}
}

func ids(tasks []*models.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}

func TestFullScan(t *testing.T) {
	e, store := newTestEngine(t)
	seed(t, store, "b/second.md", docB)
	seed(t, store, "a/first.md", docA)

	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := e.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("snapshot has %d tasks, want 5: %v", len(snap), ids(snap))
	}
	// Ordered by path, then line.
	if snap[0].ID != "a/first.md:2" || snap[2].ID != "b/second.md:0" {
		t.Errorf("snapshot order: %v", ids(snap))
	}
	if snap[3].Status != models.StatusInProgress {
		t.Errorf("Beta status = %s", snap[3].Status)
	}

	// A rescan converges to the same collection.
	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if again := e.Snapshot(); len(again) != 5 {
		t.Errorf("rescan has %d tasks", len(again))
	}
}

func TestChanged_ReplacesDocumentTasks(t *testing.T) {
	e, store := newTestEngine(t)
	seed(t, store, "notes.md", docA)
	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Line 3 dropped, line 2 rewritten.
	seed(t, store, "notes.md", "# Inbox\n\n- [ ] Task one revised ⏳2025-10-07\n")
	if err := e.Changed(context.Background(), "notes.md"); err != nil {
		t.Fatal(err)
	}

	snap := e.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d tasks, want 1", len(snap))
	}
	if snap[0].Text != "Task one revised" || snap[0].Date != "2025-10-07" {
		t.Errorf("task = %+v", snap[0])
	}
	if _, ok := e.Get("notes.md:3"); ok {
		t.Error("removed line still present")
	}
}

func TestCreated_NotifiesOnlyWhenTasksFound(t *testing.T) {
	e, store := newTestEngine(t)
	notifications := 0
	e.Subscribe(func([]*models.Task) { notifications++ })

	seed(t, store, "empty.md", "# Nothing here\n\nJust prose.\n")
	if err := e.Created(context.Background(), "empty.md"); err != nil {
		t.Fatal(err)
	}
	if notifications != 0 {
		t.Fatalf("task-free document triggered %d notifications", notifications)
	}

	seed(t, store, "todo.md", docB)
	if err := e.Created(context.Background(), "todo.md"); err != nil {
		t.Fatal(err)
	}
	if notifications != 1 {
		t.Fatalf("notifications = %d, want 1", notifications)
	}
	if len(e.Snapshot()) != 3 {
		t.Errorf("snapshot has %d tasks", len(e.Snapshot()))
	}
}

func TestDeleted(t *testing.T) {
	e, store := newTestEngine(t)
	seed(t, store, "gone.md", docB)
	seed(t, store, "stays.md", docA)
	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	if removed := e.Deleted("gone.md"); removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	snap := e.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d tasks, want 2", len(snap))
	}
	for _, task := range snap {
		if task.DocumentPath != "stays.md" {
			t.Errorf("unexpected survivor %s", task.ID)
		}
	}

	// Deleting an unknown document is a quiet no-op.
	if removed := e.Deleted("never.md"); removed != 0 {
		t.Errorf("removed = %d for unknown document", removed)
	}
}

func TestRenamed(t *testing.T) {
	e, store := newTestEngine(t)
	seed(t, store, "old.md", docB)
	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	e.Renamed("old.md", "archive/new.md")

	if _, ok := e.Get("old.md:0"); ok {
		t.Error("old id still resolves")
	}
	task, ok := e.Get("archive/new.md:0")
	if !ok {
		t.Fatal("new id does not resolve")
	}
	if task.DocumentPath != "archive/new.md" || task.Text != "Alpha" {
		t.Errorf("task = %+v", task)
	}

	paths := e.DocumentPaths()
	if paths["old.md"] || !paths["archive/new.md"] {
		t.Errorf("paths = %v", paths)
	}
}

func TestWriteBack(t *testing.T) {
	e, store := newTestEngine(t)
	seed(t, store, "notes.md", docA)
	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	task, _ := e.Get("notes.md:2")
	done := models.StatusDone
	dur := 45
	if err := e.WriteBack(context.Background(), task, FieldUpdates{Status: &done, Duration: &dur}); err != nil {
		t.Fatal(err)
	}

	data, err := store.Read("notes.md")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(data), "\n")
	if lines[2] != "- [x] Task one ⏳2025-10-06 ⏱45min #work" {
		t.Errorf("rewritten line = %q", lines[2])
	}
	// The rest of the document is untouched.
	if lines[0] != "# Inbox" || lines[3] != "- [ ] Task two" {
		t.Errorf("unrelated lines changed:\n%s", data)
	}

	updated, _ := e.Get("notes.md:2")
	if updated.Status != models.StatusDone || updated.Duration != 45 {
		t.Errorf("memory not updated: %+v", updated)
	}
}

func TestWriteBack_ClearingDateDropsTime(t *testing.T) {
	e, store := newTestEngine(t)
	seed(t, store, "notes.md", "- [ ] Standup ⏳2025-10-06 ⏰09:00\n")
	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	task, _ := e.Get("notes.md:0")
	empty := ""
	if err := e.WriteBack(context.Background(), task, FieldUpdates{Date: &empty}); err != nil {
		t.Fatal(err)
	}

	updated, _ := e.Get("notes.md:0")
	if updated.Date != "" || updated.Time != "" {
		t.Errorf("unscheduled task = %+v", updated)
	}
	data, _ := store.Read("notes.md")
	if strings.ContainsAny(string(data), "⏳⏰") {
		t.Errorf("markers survived: %q", data)
	}
}

func TestWriteBack_TargetVanished(t *testing.T) {
	e, store := newTestEngine(t)
	seed(t, store, "notes.md", docA)
	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}
	task, _ := e.Get("notes.md:2")

	if err := store.Delete("notes.md"); err != nil {
		t.Fatal(err)
	}
	done := models.StatusDone
	err := e.WriteBack(context.Background(), task, FieldUpdates{Status: &done})
	if !errors.Is(err, apperr.ErrTargetNotFound) {
		t.Fatalf("err = %v, want ErrTargetNotFound", err)
	}

	// Line index beyond the document is the same class of failure.
	seed(t, store, "notes.md", "- [ ] only line\n")
	err = e.WriteBack(context.Background(), task, FieldUpdates{Status: &done})
	if !errors.Is(err, apperr.ErrTargetNotFound) {
		t.Fatalf("err = %v, want ErrTargetNotFound", err)
	}
}

func TestWriteBack_EditConflict(t *testing.T) {
	e, store := newTestEngine(t)
	seed(t, store, "notes.md", docA)
	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}
	task, _ := e.Get("notes.md:2")

	// Someone rewrote the line into prose while our task is stale.
	seed(t, store, "notes.md", "# Inbox\n\nnot a task anymore\n- [ ] Task two\n")

	done := models.StatusDone
	err := e.WriteBack(context.Background(), task, FieldUpdates{Status: &done})
	if !errors.Is(err, apperr.ErrEditConflict) {
		t.Fatalf("err = %v, want ErrEditConflict", err)
	}

	// The failed write must not have touched the document.
	data, _ := store.Read("notes.md")
	if !strings.Contains(string(data), "not a task anymore") {
		t.Errorf("document was modified:\n%s", data)
	}
}

func TestWriteBack_RejectsCalendarOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	task := &models.Task{
		ID:           "calendar-123",
		Text:         "Derived",
		CalendarOnly: true,
		// A timer-derived task still points at its source line.
		DocumentPath: "notes.md",
		Line:         2,
	}
	done := models.StatusDone
	if err := e.WriteBack(context.Background(), task, FieldUpdates{Status: &done}); err == nil {
		t.Fatal("write-back on calendar-only task must fail")
	}
}

func TestStaleGenerationDiscarded(t *testing.T) {
	e, _ := newTestEngine(t)

	older := []byte("- [ ] old text\n")
	newer := []byte("- [ ] new text\n")

	genOld := e.nextGen("doc.md")
	genNew := e.nextGen("doc.md")

	// The newer read completes first.
	e.applyDocument("doc.md", genNew, newer)
	// The older read completes late and must be discarded.
	e.applyDocument("doc.md", genOld, older)

	task, ok := e.Get("doc.md:0")
	if !ok {
		t.Fatal("task missing")
	}
	if task.Text != "new text" {
		t.Errorf("text = %q, stale read won", task.Text)
	}
}

func TestSelfWriteEchoSwallowed(t *testing.T) {
	e, store := newTestEngine(t)
	seed(t, store, "notes.md", docA)
	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	notifications := 0
	e.Subscribe(func([]*models.Task) { notifications++ })

	task, _ := e.Get("notes.md:2")
	done := models.StatusDone
	if err := e.WriteBack(context.Background(), task, FieldUpdates{Status: &done}); err != nil {
		t.Fatal(err)
	}
	after := notifications

	// The watcher reports our own write; the echo must not renotify.
	if err := e.Changed(context.Background(), "notes.md"); err != nil {
		t.Fatal(err)
	}
	if notifications != after {
		t.Errorf("echo produced %d extra notifications", notifications-after)
	}

	// A genuine external change afterwards still lands.
	seed(t, store, "notes.md", "- [ ] fresh external edit\n")
	if err := e.Changed(context.Background(), "notes.md"); err != nil {
		t.Fatal(err)
	}
	if notifications != after+1 {
		t.Errorf("external change after echo not applied")
	}
	if task, ok := e.Get("notes.md:0"); !ok || task.Text != "fresh external edit" {
		t.Error("external edit missing from collection")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	e, store := newTestEngine(t)
	seed(t, store, "notes.md", docA)
	if err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := e.Snapshot()
	snap[0].Text = "mutated"
	snap[0].Tags = append(snap[0].Tags, "injected")

	fresh, _ := e.Get(snap[0].ID)
	if fresh.Text == "mutated" {
		t.Error("snapshot aliases engine state")
	}
	for _, tag := range fresh.Tags {
		if tag == "injected" {
			t.Error("tag slice aliases engine state")
		}
	}
}
