package progress

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

func TestStreamPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStream()
	r := NewReporter("run-1", s)

	go func() {
		for i := 1; i <= 50; i++ {
			r.Step(ctx, 4, StatusRunning, "step")
		}
		s.Close()
	}()

	want := 1
	for {
		ev, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if ev.Seq != want {
			t.Fatalf("seq: want=%d got=%d", want, ev.Seq)
		}
		if ev.RunID != "run-1" {
			t.Fatalf("run id: want=run-1 got=%q", ev.RunID)
		}
		want++
	}
	if want != 51 {
		t.Fatalf("events received: want=50 got=%d", want-1)
	}
}

func TestDetachDoesNotBlockProducer(t *testing.T) {
	ctx := context.Background()
	s := NewStream()
	other := NewStream()
	r := NewReporter("run-2", s, other)

	r.Step(ctx, 1, StatusCompleted, "init")
	s.Detach()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			r.Step(ctx, 4, StatusRunning, "work")
		}
		other.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("producer blocked after listener detached")
	}

	if _, err := s.Next(ctx); err != io.EOF {
		t.Fatalf("detached stream: want EOF got=%v", err)
	}
	n := 0
	for {
		if _, err := other.Next(ctx); err != nil {
			break
		}
		n++
	}
	if n != 1001 {
		t.Fatalf("other listener events: want=1001 got=%d", n)
	}
}

func TestNextHonorsContext(t *testing.T) {
	s := NewStream()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got=%v", err)
	}
}

func TestWriteNDJSON(t *testing.T) {
	ctx := context.Background()
	s := NewStream()
	r := NewReporter("run-3", s)
	r.Step(ctx, 1, StatusCompleted, "初始化")
	r.Agent(ctx, 2, "src-1", AgentRunning, "采集")
	r.Agent(ctx, 2, "src-3", AgentBlocked, "无文件")
	r.StepProgress(ctx, 4, StatusRunning, "处理", Progress{Current: 5, Total: 10, Stage: "处理岗位数据", Percent: 50})
	s.Close()

	var buf bytes.Buffer
	flushes := 0
	if err := s.WriteNDJSON(ctx, &buf, func() { flushes++ }); err != nil {
		t.Fatalf("write: %v", err)
	}
	if flushes != 4 {
		t.Fatalf("flushes: want=4 got=%d", flushes)
	}

	var lines []map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line is not json: %q", sc.Text())
		}
		lines = append(lines, m)
	}
	if len(lines) != 4 {
		t.Fatalf("lines: want=4 got=%d", len(lines))
	}
	if lines[0]["message"] != "初始化" || lines[0]["status"] != "completed" {
		t.Fatalf("first line: %v", lines[0])
	}
	if lines[1]["event_type"] != EventTypeAgentStatus || lines[1]["status"] != "running" {
		t.Fatalf("agent running line: %v", lines[1])
	}
	if lines[2]["agent_status"] != "blocked" || lines[2]["status"] != "completed" {
		t.Fatalf("agent blocked line: %v", lines[2])
	}
	p, ok := lines[3]["progress"].(map[string]any)
	if !ok || p["percent"] != float64(50) || p["stage"] != "处理岗位数据" {
		t.Fatalf("progress line: %v", lines[3])
	}
}

func TestHubDeliversAndClosesOnTerminal(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil)
	w, cancel := hub.Watch("run-4")
	defer cancel()

	r := NewReporter("run-4", hub)
	NewReporter("other-run", hub).Step(ctx, 1, StatusCompleted, "ignored")
	r.Step(ctx, 1, StatusCompleted, "init")
	r.Final(ctx, "done", nil)

	ev, err := w.Next(ctx)
	if err != nil || ev.Message != "init" {
		t.Fatalf("first: ev=%+v err=%v", ev, err)
	}
	ev, err = w.Next(ctx)
	if err != nil || ev.StepID != FinalStep {
		t.Fatalf("final: ev=%+v err=%v", ev, err)
	}
	if _, err := w.Next(ctx); err != io.EOF {
		t.Fatalf("after terminal: want EOF got=%v", err)
	}
	if hub.Watchers("run-4") != 0 {
		t.Fatalf("watchers should be released after terminal event")
	}
}

type fakeUpdater struct {
	mu      sync.Mutex
	updates []map[string]interface{}
}

func (f *fakeUpdater) UpdateFields(_ context.Context, _ string, u map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return nil
}

func TestRunRecorder(t *testing.T) {
	ctx := context.Background()
	up := &fakeUpdater{}
	r := NewReporter("run-5", NewRunRecorder(up, nil))

	r.Agent(ctx, 2, "src-1", AgentRunning, "ignored")
	r.StepProgress(ctx, 4, StatusRunning, "处理", Progress{Current: 1, Total: 2, Stage: "处理岗位数据", Percent: 50})
	g := &types.Graph{Entities: []types.Entity{{ID: "major_x", Name: "x", Type: types.EntityMajor, Category: types.CategoryCore}}}
	r.Final(ctx, "ok", g)

	if len(up.updates) != 2 {
		t.Fatalf("updates: want=2 got=%d", len(up.updates))
	}
	if up.updates[0]["stage"] != "处理岗位数据" || up.updates[0]["status"] != types.RunStatusRunning {
		t.Fatalf("progress update: %v", up.updates[0])
	}
	if up.updates[1]["status"] != types.RunStatusSucceeded {
		t.Fatalf("final update: %v", up.updates[1])
	}
	if _, ok := up.updates[1]["summary"]; !ok {
		t.Fatalf("final update should carry a summary: %v", up.updates[1])
	}
}

func TestHubClosesLateWatchers(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil)
	if hub.Known("run-5") {
		t.Fatalf("run known before any event")
	}
	r := NewReporter("run-5", hub)
	r.Step(ctx, 1, StatusRunning, "init")
	if !hub.Known("run-5") {
		t.Fatalf("run should be known after its first event")
	}
	r.Final(ctx, "done", nil)

	// Attaching after the terminal event must not wait for events that never come.
	w, detach := hub.Watch("run-5")
	defer detach()
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if _, err := w.Next(waitCtx); err != io.EOF {
		t.Fatalf("late watcher: want EOF got=%v", err)
	}
	if hub.Watchers("run-5") != 0 {
		t.Fatalf("late watcher should not be registered")
	}
	if !hub.Known("run-5") {
		t.Fatalf("finished run should stay known within retention")
	}
}

func TestHubForgetsRunsAfterRetention(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return now }

	NewReporter("old", hub).Final(ctx, "done", nil)
	now = now.Add(DefaultRunRetention + time.Minute)
	NewReporter("new", hub).Final(ctx, "done", nil)

	if hub.Known("old") {
		t.Fatalf("run past retention should be forgotten")
	}
	if !hub.Known("new") {
		t.Fatalf("recent run should be known")
	}
}
