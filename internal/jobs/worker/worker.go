package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/majorgraph-backend/internal/graphstore"
	"github.com/yungbote/majorgraph-backend/internal/observability"
	"github.com/yungbote/majorgraph-backend/internal/platform/apierr"
	"github.com/yungbote/majorgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/majorgraph-backend/internal/platform/envutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/progress"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

var (
	ErrQueueFull = apierr.Unavailable("queue_full", "worker: build queue is full")
	ErrStopped   = apierr.Unavailable("worker_stopped", "worker: stopped")
	ErrBadRef    = apierr.BadRequest("invalid_graph_ref", "worker: school, college and major are required")
)

// Builder runs one synthesis. *synthesis.Service satisfies it.
type Builder interface {
	Build(ctx context.Context, ref types.GraphRef, rep *progress.Reporter) (*types.Graph, error)
}

// RunStore persists run history rows. Optional.
type RunStore interface {
	Create(dbc dbctx.Context, run *types.GraphBuildRun) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type Options struct {
	Builder Builder
	Runs    RunStore
	// Sinks receive every run's events besides the run's own stream (hub or bus, logs).
	Sinks       []progress.Sink
	Concurrency int
	QueueSize   int
	Metrics     *observability.Metrics
	Log         *logger.Logger
}

// Run is a submitted build. Stream carries its events to the submitter and is closed when
// the run ends.
type Run struct {
	ID     string
	Ref    types.GraphRef
	Stream *progress.Stream

	ctx      context.Context
	queuedAt time.Time
	done     chan struct{}
	graph    *types.Graph
	err      error
}

func (r *Run) Done() <-chan struct{} { return r.done }

// Result blocks until the run ends.
func (r *Run) Result() (*types.Graph, error) {
	<-r.done
	return r.graph, r.err
}

type Worker struct {
	builder     Builder
	runs        RunStore
	sinks       []progress.Sink
	concurrency int
	metrics     *observability.Metrics
	log         *logger.Logger

	mu      sync.RWMutex
	queue   chan *Run
	stopped bool
	started bool
	wg      sync.WaitGroup

	activeMu sync.Mutex
	active   map[string]struct{}
}

func NewWorker(opts Options) (*Worker, error) {
	if opts.Builder == nil {
		return nil, fmt.Errorf("worker: builder is required")
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	concurrency := opts.Concurrency
	if concurrency == 0 {
		concurrency = envutil.Int("WORKER_CONCURRENCY", 4)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	queueSize := opts.QueueSize
	if queueSize == 0 {
		queueSize = envutil.Int("WORKER_QUEUE_SIZE", 64)
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Worker{
		builder:     opts.Builder,
		runs:        opts.Runs,
		sinks:       opts.Sinks,
		concurrency: concurrency,
		metrics:     opts.Metrics,
		log:         log.With("component", "GraphBuildWorker"),
		queue:       make(chan *Run, queueSize),
		active:      make(map[string]struct{}),
	}, nil
}

// Start launches the pool. Runs keep going after ctx ends; use Stop to drain.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	w.log.Info("Starting graph build worker pool", "concurrency", w.concurrency, "queue", cap(w.queue))
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go w.runLoop(workerID)
	}
}

func (w *Worker) runLoop(workerID int) {
	defer w.wg.Done()
	for run := range w.queue {
		w.metrics.SetWorkerQueueDepth(len(w.queue))
		w.process(workerID, run)
	}
	w.log.Info("Worker loop stopped", "worker_id", workerID)
}

// Submit queues a build for ref and returns at once. The run is detached from ctx's
// cancellation but keeps its values (trace and request ids).
func (w *Worker) Submit(ctx context.Context, ref types.GraphRef) (*Run, error) {
	ref = ref.Trimmed()
	if !ref.Valid() {
		return nil, ErrBadRef
	}
	id := uuid.NewString()
	run := &Run{
		ID:       id,
		Ref:      ref,
		Stream:   progress.NewStream(),
		ctx:      ctxutil.WithRun(context.WithoutCancel(ctx), id),
		queuedAt: time.Now(),
		done:     make(chan struct{}),
	}
	w.recordQueued(ctx, run)
	w.track(run.ID, true)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		w.reject(run, ErrStopped)
		return nil, ErrStopped
	}
	select {
	case w.queue <- run:
		w.metrics.SetWorkerQueueDepth(len(w.queue))
		w.log.Debug("graph build queued", "run_id", run.ID, "ref", ref.String())
		return run, nil
	default:
		w.reject(run, ErrQueueFull)
		return nil, ErrQueueFull
	}
}

// Stop refuses new runs and waits for queued and running ones to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	started := w.started
	w.mu.Unlock()

	if !started {
		for run := range w.queue {
			w.reject(run, ErrStopped)
		}
		return
	}
	w.wg.Wait()
}

func (w *Worker) process(workerID int, run *Run) {
	start := time.Now()
	ctx := run.ctx
	log := w.log.With("worker_id", workerID, "run_id", run.ID, "ref", run.Ref.String())

	sinks := append([]progress.Sink{run.Stream}, w.sinks...)
	if w.runs != nil {
		sinks = append(sinks, progress.NewRunRecorder(runUpdater{w.runs}, w.log))
	}
	rep := progress.NewReporter(run.ID, sinks...)
	w.updateRun(ctx, run, map[string]interface{}{"status": types.RunStatusRunning, "stage": "started"})

	var (
		g   *types.Graph
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Graph build panic", "panic", r)
				err = errFromRecover(r)
			}
		}()
		g, err = w.builder.Build(ctx, run.Ref, rep)
	}()

	status := types.RunStatusSucceeded
	if err != nil {
		status = types.RunStatusFailed
		log.Warn("graph build failed", "error", err)
		rep.Fail(ctx, fmt.Sprintf("图谱构建失败: %v", err))
	}
	w.metrics.ObserveBuildRun(status, time.Since(start))
	log.Info("graph build run finished", "status", status, "queued_ms", start.Sub(run.queuedAt).Milliseconds(), "duration_ms", time.Since(start).Milliseconds())

	run.graph, run.err = g, err
	w.track(run.ID, false)
	run.Stream.Close()
	close(run.done)
}

// Active reports whether runID is queued or running on this worker.
func (w *Worker) Active(runID string) bool {
	w.activeMu.Lock()
	defer w.activeMu.Unlock()
	_, ok := w.active[runID]
	return ok
}

func (w *Worker) track(runID string, on bool) {
	w.activeMu.Lock()
	defer w.activeMu.Unlock()
	if on {
		w.active[runID] = struct{}{}
	} else {
		delete(w.active, runID)
	}
}

func (w *Worker) reject(run *Run, reason error) {
	w.updateRun(run.ctx, run, map[string]interface{}{"status": types.RunStatusFailed, "error": reason.Error()})
	run.err = reason
	w.track(run.ID, false)
	run.Stream.Close()
	close(run.done)
}

func (w *Worker) recordQueued(ctx context.Context, run *Run) {
	if w.runs == nil {
		return
	}
	id, _ := uuid.Parse(run.ID)
	row := &types.GraphBuildRun{
		ID:       id,
		School:   run.Ref.School,
		College:  run.Ref.College,
		Major:    run.Ref.Major,
		CacheKey: graphstore.KeyFor(run.Ref).ID,
		Status:   types.RunStatusQueued,
		Stage:    "queued",
	}
	if err := w.runs.Create(dbctx.With(context.WithoutCancel(ctx)), row); err != nil {
		w.log.Warn("run history insert failed", "run_id", run.ID, "error", err)
	}
}

func (w *Worker) updateRun(ctx context.Context, run *Run, updates map[string]interface{}) {
	if w.runs == nil {
		return
	}
	if err := (runUpdater{w.runs}).UpdateFields(ctx, run.ID, updates); err != nil {
		w.log.Warn("run history update failed", "run_id", run.ID, "error", err)
	}
}

// runUpdater adapts a RunStore to progress.RunUpdater.
type runUpdater struct{ store RunStore }

func (u runUpdater) UpdateFields(ctx context.Context, runID string, updates map[string]interface{}) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("worker: run id %q: %w", runID, err)
	}
	return u.store.UpdateFields(dbctx.With(ctx), id, updates)
}

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
