package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dohr-michael/tasktrack/internal/config"
	"github.com/dohr-michael/tasktrack/internal/events"
	"github.com/dohr-michael/tasktrack/internal/script"
	"github.com/dohr-michael/tasktrack/internal/tasks"
	"github.com/dohr-michael/tasktrack/internal/tracker"
)

func newTestShell(t *testing.T, buf *bytes.Buffer) *shell {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	tr := tracker.New(nil, tracker.WithPublisher(bus))
	return &shell{
		tracker: tr,
		runner:  script.NewRunner(tr),
		bus:     bus,
		out:     &printer{w: buf},
		reload:  func() error { return errors.New("no config") },
	}
}

func TestShellLoop(t *testing.T) {
	var buf bytes.Buffer
	sh := newTestShell(t, &buf)

	input := strings.Join([]string{
		`create_epic title="Birthday party" ref=party`,
		`create_subtask epic=party title=Invites ref=invites`,
		``,
		`# comment`,
		`update_subtask invites status=done`,
		`get_epic party`,
		`create_subtask target=party epic=party expect=invalid_relationship`,
		`get_task 99`,
		`bogus`,
		`reload`,
		`state`,
		`quit`,
		`create_task title=never`,
	}, "\n")

	if err := sh.loop(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("loop: %v", err)
	}

	if got := len(sh.tracker.Tasks()); got != 0 {
		t.Errorf("lines after quit were executed: %d tasks", got)
	}
	epics := sh.tracker.Epics()
	if len(epics) != 1 || epics[0].Status() != tasks.StatusDone {
		t.Fatalf("epics: got %+v", epics)
	}

	out := buf.String()
	for _, want := range []string{
		"Birthday party",
		"rejected as expected",
		"error: get task [task 99]: not found",
		`error: unknown op "bogus"`,
		"error: no config",
		"subtasks=2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShellLoopEOF(t *testing.T) {
	var buf bytes.Buffer
	sh := newTestShell(t, &buf)
	if err := sh.loop(context.Background(), strings.NewReader("create_task title=last")); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if got := len(sh.tracker.Tasks()); got != 1 {
		t.Errorf("tasks: got %d, want 1", got)
	}
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "nested/b.yaml", "nested/deeper/c.yaml", "notes.txt"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("steps: []"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := expandGlobs([]string{
		filepath.Join(dir, "**", "*.yaml"),
		filepath.Join(dir, "a.yaml"),
	})
	if err != nil {
		t.Fatalf("expandGlobs: %v", err)
	}
	if len(paths) != 3 {
		t.Errorf("paths: got %v, want 3 unique yaml files", paths)
	}

	if _, err := expandGlobs([]string{filepath.Join(dir, "*.json")}); err == nil {
		t.Error("expected error for a pattern matching nothing")
	}
}

func TestPrinterEntities(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf}

	epic := tasks.RestoreEpic(1, "Party", "Plan it", tasks.StatusInProgress, []tasks.ID{2})
	sub := &tasks.Subtask{ID: 2, Title: "Invites", Status: tasks.StatusDone, EpicID: 1}
	if err := p.entities([]tasks.Entity{epic, sub}); err != nil {
		t.Fatalf("entities: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"ID", "in_progress", "subtasks=2", "epic=1", "Plan it"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("colors written to a non-terminal")
	}
}

func TestDescribeStep(t *testing.T) {
	got := describeStep(script.Step{Op: script.OpUpdateSubtask, Target: "invites", Status: "done"})
	want := `update_subtask target="invites" status="done"`
	if got != want {
		t.Errorf("describeStep: got %q, want %q", got, want)
	}
}

func TestShellEvents(t *testing.T) {
	var buf bytes.Buffer
	sh := newTestShell(t, &buf)

	input := "create_task title=Milk\nevents nope\n"
	if err := sh.loop(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if !strings.Contains(buf.String(), `error: events: count must be a positive number, got "nope"`) {
		t.Errorf("bad count not reported:\n%s", buf.String())
	}

	sh.bus.Close()
	buf.Reset()
	if err := sh.recentEvents([]string{"1"}); err != nil {
		t.Fatalf("recentEvents: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"TYPE", "entity.created", "Milk"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func restoreDefaultLogger(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestApplyConfig(t *testing.T) {
	restoreDefaultLogger(t)

	a := &app{cfg: config.Default(), bus: events.NewBus(64)}
	tr := tracker.New(nil, tracker.WithPublisher(a.bus))
	for _, title := range []string{"a", "b", "c"} {
		created := tr.CreateTask(tasks.NewTask(title, ""))
		tr.GetTask(created.ID)
	}

	dir := t.TempDir()
	cfg := config.Default()
	cfg.History.Limit = 1
	cfg.Events.AuditLog = dir
	if err := a.applyConfig(cfg, tr, "run_test"); err != nil {
		t.Fatalf("applyConfig: %v", err)
	}

	if got := len(tr.History()); got != 1 {
		t.Errorf("history after reload: got %d entries, want 1", got)
	}
	if a.audit == nil || a.auditDir != dir {
		t.Fatalf("audit log not switched to %s", dir)
	}

	tr.CreateTask(tasks.NewTask("logged", ""))
	a.Close()
	if _, err := os.Stat(filepath.Join(dir, "_global.jsonl")); err != nil {
		t.Errorf("audit file not written: %v", err)
	}
}

func TestApplyConfigKeepsPinnedAuditLog(t *testing.T) {
	restoreDefaultLogger(t)

	pinned := t.TempDir()
	a := &app{cfg: config.Default(), bus: events.NewBus(8), auditPinned: true}
	a.setAuditLog(pinned)
	defer a.Close()

	cfg := config.Default()
	cfg.Events.AuditLog = t.TempDir()
	if err := a.applyConfig(cfg, tracker.New(nil), "run_test"); err != nil {
		t.Fatalf("applyConfig: %v", err)
	}
	if a.auditDir != pinned {
		t.Errorf("audit dir: got %s, want %s", a.auditDir, pinned)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestPrinterResultLogsWriteError(t *testing.T) {
	restoreDefaultLogger(t)
	var logs bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))

	p := &printer{w: failingWriter{}}
	p.result(script.Result{
		Step:     script.Step{Op: script.OpList},
		Entities: []tasks.Entity{&tasks.Task{ID: 1, Title: "Milk", Status: tasks.StatusNew}},
	}, nil)

	if out := logs.String(); !strings.Contains(out, "write result") || !strings.Contains(out, "disk full") {
		t.Errorf("write error not logged: %q", out)
	}
}
