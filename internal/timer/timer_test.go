package timer

import (
	"testing"
	"time"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/testutil"
)

// fakeClock returns a clock function whose value can be advanced by
// the test.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	st := testutil.TestState(t)
	svc := NewService(st, 30, testutil.Logger())
	clock := &fakeClock{t: time.Date(2025, 10, 6, 14, 30, 0, 0, time.Local)}
	svc.now = clock.now
	return svc, clock
}

func sourceTask() *models.Task {
	return &models.Task{
		ID:           "notes/todo.md:4",
		Text:         "Write report",
		Tags:         []string{"work"},
		Priority:     models.PriorityHigh,
		Status:       models.StatusTodo,
		DocumentPath: "notes/todo.md",
		Line:         4,
	}
}

func TestStartCreatesDerivedTask(t *testing.T) {
	svc, _ := newTestService(t)

	derived, err := svc.Start(sourceTask())
	if err != nil {
		t.Fatal(err)
	}

	if !derived.CalendarOnly {
		t.Error("derived task must be calendar-only")
	}
	if derived.Date != "2025-10-06" || derived.Time != "14:30" {
		t.Errorf("derived scheduled at %s %s", derived.Date, derived.Time)
	}
	if derived.Duration != 30 {
		t.Errorf("derived duration = %d, want default 30", derived.Duration)
	}
	if derived.Text != "Write report" || derived.Priority != models.PriorityHigh {
		t.Errorf("source fields not copied: %+v", derived)
	}
	if len(derived.Tags) != 1 || derived.Tags[0] != "work" {
		t.Errorf("tags = %v", derived.Tags)
	}
	if derived.DocumentPath != "notes/todo.md" || derived.Line != 4 {
		t.Errorf("source location not kept: %s:%d", derived.DocumentPath, derived.Line)
	}

	sess := svc.Active()
	if sess == nil {
		t.Fatal("no active session after start")
	}
	if sess.SourceTaskID != "notes/todo.md:4" || sess.DerivedTaskID != derived.ID {
		t.Errorf("session = %+v", sess)
	}
	if sess.Paused {
		t.Error("fresh session must not be paused")
	}
}

func TestPauseWritesElapsedMinutes(t *testing.T) {
	svc, clock := newTestService(t)
	st := svc.st

	derived, err := svc.Start(sourceTask())
	if err != nil {
		t.Fatal(err)
	}

	clock.advance(90 * time.Second)
	if err := svc.Pause(); err != nil {
		t.Fatal(err)
	}

	sess := svc.Active()
	if !sess.Paused {
		t.Fatal("session not paused")
	}
	if sess.PausedAccum != 90_000 {
		t.Errorf("PausedAccum = %d, want 90000", sess.PausedAccum)
	}

	got, err := st.GetTask(derived.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Duration != 2 {
		t.Errorf("duration after 90s = %d, want 2 (rounded up)", got.Duration)
	}

	// Second pause is a no-op.
	clock.advance(time.Minute)
	if err := svc.Pause(); err != nil {
		t.Fatal(err)
	}
	if svc.Active().PausedAccum != 90_000 {
		t.Error("pause while paused must not accumulate")
	}
}

func TestResumeAndStop(t *testing.T) {
	svc, clock := newTestService(t)
	st := svc.st

	derived, err := svc.Start(sourceTask())
	if err != nil {
		t.Fatal(err)
	}

	clock.advance(60 * time.Second)
	if err := svc.Pause(); err != nil {
		t.Fatal(err)
	}

	// Paused time does not count.
	clock.advance(10 * time.Minute)
	if err := svc.Resume(); err != nil {
		t.Fatal(err)
	}

	clock.advance(30 * time.Second)
	minutes, err := svc.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if minutes != 2 {
		t.Errorf("stop returned %d minutes, want 2 (90s rounded up)", minutes)
	}

	if svc.Active() != nil {
		t.Error("session must be cleared after stop")
	}
	sess, err := st.Session()
	if err != nil {
		t.Fatal(err)
	}
	if sess != nil {
		t.Error("persisted session must be cleared after stop")
	}

	got, err := st.GetTask(derived.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Duration != 2 {
		t.Errorf("final duration = %d, want 2", got.Duration)
	}
}

func TestStopWhenIdle(t *testing.T) {
	svc, _ := newTestService(t)
	minutes, err := svc.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if minutes != 0 {
		t.Errorf("idle stop returned %d", minutes)
	}
}

func TestStartFinalizesRunningSession(t *testing.T) {
	svc, clock := newTestService(t)
	st := svc.st

	first, err := svc.Start(sourceTask())
	if err != nil {
		t.Fatal(err)
	}

	clock.advance(5 * time.Minute)
	other := sourceTask()
	other.ID = "notes/todo.md:9"
	other.Line = 9
	second, err := svc.Start(other)
	if err != nil {
		t.Fatal(err)
	}

	got, err := st.GetTask(first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Duration != 5 {
		t.Errorf("first session finalized at %d minutes, want 5", got.Duration)
	}
	if sess := svc.Active(); sess.DerivedTaskID != second.ID {
		t.Errorf("active session tracks %s, want %s", sess.DerivedTaskID, second.ID)
	}
}

func TestToggle(t *testing.T) {
	svc, clock := newTestService(t)
	src := sourceTask()

	derived, err := svc.Toggle(src)
	if err != nil {
		t.Fatal(err)
	}
	if derived == nil {
		t.Fatal("first toggle must start a session")
	}

	clock.advance(time.Minute)
	if _, err := svc.Toggle(src); err != nil {
		t.Fatal(err)
	}
	if !svc.Active().Paused {
		t.Error("toggle on running session must pause")
	}

	if _, err := svc.Toggle(src); err != nil {
		t.Fatal(err)
	}
	if svc.Active().Paused {
		t.Error("toggle on paused session must resume")
	}

	other := sourceTask()
	other.ID = "notes/other.md:1"
	started, err := svc.Toggle(other)
	if err != nil {
		t.Fatal(err)
	}
	if started == nil {
		t.Fatal("toggle for a different task must start a new session")
	}
	if svc.Active().SourceTaskID != "notes/other.md:1" {
		t.Error("session must track the new task")
	}
}

func TestRestore(t *testing.T) {
	svc, clock := newTestService(t)
	st := svc.st

	derived, err := svc.Start(sourceTask())
	if err != nil {
		t.Fatal(err)
	}
	clock.advance(time.Minute)

	// Simulate a restart: fresh service over the same store.
	svc2 := NewService(st, 30, testutil.Logger())
	svc2.now = clock.now
	if err := svc2.Restore(); err != nil {
		t.Fatal(err)
	}
	sess := svc2.Active()
	if sess == nil || sess.DerivedTaskID != derived.ID {
		t.Fatalf("restored session = %+v", sess)
	}
}

func TestRestoreDiscardsStaleSession(t *testing.T) {
	svc, _ := newTestService(t)
	st := svc.st

	derived, err := svc.Start(sourceTask())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteTask(derived.ID); err != nil {
		t.Fatal(err)
	}

	svc2 := NewService(st, 30, testutil.Logger())
	if err := svc2.Restore(); err != nil {
		t.Fatal(err)
	}
	if svc2.Active() != nil {
		t.Error("session over a deleted task must be discarded")
	}
	sess, err := st.Session()
	if err != nil {
		t.Fatal(err)
	}
	if sess != nil {
		t.Error("stale session must be cleared from the store")
	}
}

func TestFlush(t *testing.T) {
	svc, clock := newTestService(t)

	if _, err := svc.Start(sourceTask()); err != nil {
		t.Fatal(err)
	}
	clock.advance(30 * time.Second)
	if err := svc.Flush(); err != nil {
		t.Fatal(err)
	}
	if svc.Active() != nil {
		t.Error("flush must finalize the session")
	}
}

func TestCeilMinutes(t *testing.T) {
	cases := []struct {
		ms   int64
		want int
	}{
		{0, 0},
		{1, 1},
		{59_999, 1},
		{60_000, 1},
		{60_001, 2},
		{90_000, 2},
	}
	for _, tc := range cases {
		if got := ceilMinutes(tc.ms); got != tc.want {
			t.Errorf("ceilMinutes(%d) = %d, want %d", tc.ms, got, tc.want)
		}
	}
}
