package state_test

import (
	"errors"
	"testing"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/testutil"
)

func sampleTask(id string) *models.Task {
	return &models.Task{
		ID:       id,
		Text:     "Dentist appointment",
		Date:     "2025-10-10",
		Time:     "09:00",
		Duration: 45,
		Tags:     []string{"health", "recurring"},
		Priority: models.PriorityMedium,
		Status:   models.StatusTodo,
		ICSUID:   "dentist-1",
	}
}

func TestTaskRoundTrip(t *testing.T) {
	st := testutil.TestState(t)

	want := sampleTask("calendar-1")
	if err := st.AddTask(want); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetTask("calendar-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != want.Text || got.Date != want.Date || got.Time != want.Time ||
		got.Duration != want.Duration || got.Priority != want.Priority ||
		got.Status != want.Status || got.ICSUID != want.ICSUID {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "health" {
		t.Errorf("tags = %v", got.Tags)
	}
	if !got.CalendarOnly {
		t.Error("stored tasks are calendar-only by definition")
	}
}

func TestAddTask_Duplicate(t *testing.T) {
	st := testutil.TestState(t)

	if err := st.AddTask(sampleTask("calendar-1")); err != nil {
		t.Fatal(err)
	}
	err := st.AddTask(sampleTask("calendar-1"))
	if !errors.Is(err, apperr.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestSaveTask_Upserts(t *testing.T) {
	st := testutil.TestState(t)

	task := sampleTask("calendar-1")
	if err := st.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	task.Text = "Dentist (moved)"
	task.Date = "2025-10-12"
	if err := st.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetTask("calendar-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "Dentist (moved)" || got.Date != "2025-10-12" {
		t.Errorf("got %+v", got)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	st := testutil.TestState(t)
	_, err := st.GetTask("nope")
	if !errors.Is(err, apperr.ErrTargetNotFound) {
		t.Fatalf("err = %v, want ErrTargetNotFound", err)
	}
}

func TestDeleteTask(t *testing.T) {
	st := testutil.TestState(t)

	if err := st.AddTask(sampleTask("calendar-1")); err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteTask("calendar-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetTask("calendar-1"); !errors.Is(err, apperr.ErrTargetNotFound) {
		t.Fatalf("task survived delete: %v", err)
	}
	// Unknown ids delete quietly.
	if err := st.DeleteTask("calendar-1"); err != nil {
		t.Fatal(err)
	}
}

func TestListTasks_Ordering(t *testing.T) {
	st := testutil.TestState(t)

	late := sampleTask("calendar-late")
	late.Date = "2025-10-20"
	early := sampleTask("calendar-early")
	early.Date = "2025-10-01"
	early.ICSUID = "other-1"

	if err := st.AddTask(late); err != nil {
		t.Fatal(err)
	}
	if err := st.AddTask(early); err != nil {
		t.Fatal(err)
	}

	tasks, err := st.ListTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len = %d", len(tasks))
	}
	if tasks[0].ID != "calendar-early" || tasks[1].ID != "calendar-late" {
		t.Errorf("order = %s, %s", tasks[0].ID, tasks[1].ID)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	st := testutil.TestState(t)

	// Nothing stored yet.
	sess, err := st.Session()
	if err != nil {
		t.Fatal(err)
	}
	if sess != nil {
		t.Fatalf("fresh store has session %+v", sess)
	}

	want := &models.TimerSession{
		SourceTaskID:  "notes/todo.md:4",
		DerivedTaskID: "calendar-abc",
		StartedAt:     1_759_750_200_000,
		PausedAccum:   90_000,
		Paused:        true,
	}
	if err := st.SaveSession(want); err != nil {
		t.Fatal(err)
	}

	sess, err = st.Session()
	if err != nil {
		t.Fatal(err)
	}
	if sess == nil || *sess != *want {
		t.Errorf("got %+v, want %+v", sess, want)
	}

	// Nil clears.
	if err := st.SaveSession(nil); err != nil {
		t.Fatal(err)
	}
	sess, err = st.Session()
	if err != nil {
		t.Fatal(err)
	}
	if sess != nil {
		t.Errorf("session survived clear: %+v", sess)
	}
}

func TestCollapsedTags(t *testing.T) {
	st := testutil.TestState(t)

	tags, err := st.CollapsedTags()
	if err != nil {
		t.Fatal(err)
	}
	if tags == nil || len(tags) != 0 {
		t.Fatalf("fresh store tags = %v", tags)
	}

	if err := st.SetCollapsedTags([]string{"work", "home"}); err != nil {
		t.Fatal(err)
	}
	tags, err = st.CollapsedTags()
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 || tags[0] != "work" || tags[1] != "home" {
		t.Errorf("tags = %v", tags)
	}

	// Replacing with nil resets to empty.
	if err := st.SetCollapsedTags(nil); err != nil {
		t.Fatal(err)
	}
	tags, err = st.CollapsedTags()
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 0 {
		t.Errorf("tags after reset = %v", tags)
	}
}
