package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/majorgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/majorgraph-backend/internal/progress"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

type builderFunc func(ctx context.Context, ref types.GraphRef, rep *progress.Reporter) (*types.Graph, error)

func (f builderFunc) Build(ctx context.Context, ref types.GraphRef, rep *progress.Reporter) (*types.Graph, error) {
	return f(ctx, ref, rep)
}

type fakeRuns struct {
	mu      sync.Mutex
	created []*types.GraphBuildRun
	status  map[uuid.UUID]string
}

func (f *fakeRuns) Create(_ dbctx.Context, run *types.GraphBuildRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, run)
	if f.status == nil {
		f.status = map[uuid.UUID]string{}
	}
	f.status[run.ID] = run.Status
	return nil
}

func (f *fakeRuns) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := updates["status"].(string); ok {
		f.status[id] = s
	}
	return nil
}

func (f *fakeRuns) statusOf(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[uuid.MustParse(id)]
}

var ref = types.GraphRef{School: "重庆大学", College: "电气工程学院", Major: "电气工程"}

func drain(t *testing.T, s *progress.Stream) []progress.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out []progress.Event
	for {
		ev, err := s.Next(ctx)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("stream: %v", err)
		}
		out = append(out, ev)
	}
}

func TestWorkerRunsBuild(t *testing.T) {
	runs := &fakeRuns{}
	graph := &types.Graph{Entities: []types.Entity{{ID: "major_电气工程", Name: "电气工程", Type: types.EntityMajor, Category: types.CategoryCore}}}
	w, err := NewWorker(Options{
		Builder: builderFunc(func(ctx context.Context, r types.GraphRef, rep *progress.Reporter) (*types.Graph, error) {
			rep.Step(ctx, 1, progress.StatusCompleted, "init")
			rep.Final(ctx, "done", graph)
			return graph, nil
		}),
		Runs:        runs,
		Concurrency: 2,
		QueueSize:   4,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	w.Start(context.Background())
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	run, err := w.Submit(ctx, types.GraphRef{School: " 重庆大学 ", College: "电气工程学院", Major: "电气工程"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancel()
	if run.Ref != ref {
		t.Fatalf("ref: want=%+v got=%+v", ref, run.Ref)
	}

	events := drain(t, run.Stream)
	if len(events) != 2 || events[1].StepID != progress.FinalStep {
		t.Fatalf("events: got=%+v", events)
	}
	if events[0].RunID != run.ID {
		t.Fatalf("run id: want=%q got=%q", run.ID, events[0].RunID)
	}
	g, err := run.Result()
	if err != nil || g != graph {
		t.Fatalf("Result: g=%v err=%v", g, err)
	}
	if got := runs.statusOf(run.ID); got != types.RunStatusSucceeded {
		t.Fatalf("run status: want=%q got=%q", types.RunStatusSucceeded, got)
	}
	if len(runs.created) != 1 || runs.created[0].CacheKey == "" {
		t.Fatalf("run row: got=%+v", runs.created)
	}
}

func TestWorkerReportsFailureAndPanic(t *testing.T) {
	cases := []struct {
		name  string
		build builderFunc
	}{
		{"error", func(context.Context, types.GraphRef, *progress.Reporter) (*types.Graph, error) {
			return nil, errors.New("save failed")
		}},
		{"panic", func(context.Context, types.GraphRef, *progress.Reporter) (*types.Graph, error) {
			panic("nil map")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runs := &fakeRuns{}
			w, err := NewWorker(Options{Builder: tc.build, Runs: runs, Concurrency: 1, QueueSize: 1})
			if err != nil {
				t.Fatalf("NewWorker: %v", err)
			}
			w.Start(context.Background())
			defer w.Stop()

			run, err := w.Submit(context.Background(), ref)
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			events := drain(t, run.Stream)
			last := events[len(events)-1]
			if last.StepID != progress.FailedStep || last.Status != progress.StatusFailed || !last.Terminal() {
				t.Fatalf("last event: got=%+v", last)
			}
			if _, err := run.Result(); err == nil {
				t.Fatalf("expected run error")
			}
			if got := runs.statusOf(run.ID); got != types.RunStatusFailed {
				t.Fatalf("run status: want=%q got=%q", types.RunStatusFailed, got)
			}
		})
	}
}

func TestWorkerQueueFullAndStop(t *testing.T) {
	w, err := NewWorker(Options{
		Builder: builderFunc(func(ctx context.Context, r types.GraphRef, rep *progress.Reporter) (*types.Graph, error) {
			return &types.Graph{}, nil
		}),
		Concurrency: 1,
		QueueSize:   1,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	first, err := w.Submit(context.Background(), ref)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := w.Submit(context.Background(), ref); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Submit: want=%v got=%v", ErrQueueFull, err)
	}
	if _, err := w.Submit(context.Background(), types.GraphRef{School: "x"}); !errors.Is(err, ErrBadRef) {
		t.Fatalf("bad ref: want=%v got=%v", ErrBadRef, err)
	}

	w.Start(context.Background())
	if _, err := first.Result(); err != nil {
		t.Fatalf("queued run: %v", err)
	}
	w.Stop()
	if _, err := w.Submit(context.Background(), ref); !errors.Is(err, ErrStopped) {
		t.Fatalf("after Stop: want=%v got=%v", ErrStopped, err)
	}
}

func TestNewWorkerRequiresBuilder(t *testing.T) {
	if _, err := NewWorker(Options{}); err == nil {
		t.Fatalf("expected error without builder")
	}
}

func TestWorkerTracksActiveRuns(t *testing.T) {
	release := make(chan struct{})
	var seenRunID string
	w, err := NewWorker(Options{
		Builder: builderFunc(func(ctx context.Context, r types.GraphRef, rep *progress.Reporter) (*types.Graph, error) {
			if td := ctxutil.GetTraceData(ctx); td != nil {
				seenRunID = td.RunID
			}
			<-release
			return &types.Graph{}, nil
		}),
		Concurrency: 1,
		QueueSize:   2,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	run, err := w.Submit(context.Background(), ref)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !w.Active(run.ID) {
		t.Fatalf("queued run should be active")
	}
	w.Start(context.Background())
	close(release)
	if _, err := run.Result(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if w.Active(run.ID) {
		t.Fatalf("finished run should not be active")
	}
	if seenRunID != run.ID {
		t.Fatalf("run id on build context: want=%q got=%q", run.ID, seenRunID)
	}
	w.Stop()
}
