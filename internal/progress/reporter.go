package progress

import (
	"context"
	"sync"
	"time"
)

// Sink receives events in emission order. Emit must not block for long; sinks that talk to
// the network bound their own latency.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// Reporter fans the events of one run out to its sinks. Emission is serialized so every
// sink observes the run's events in program order.
type Reporter struct {
	mu    sync.Mutex
	runID string
	seq   int
	sinks []Sink
	now   func() time.Time
}

func NewReporter(runID string, sinks ...Sink) *Reporter {
	return &Reporter{runID: runID, sinks: sinks, now: time.Now}
}

// Nop returns a reporter without sinks.
func Nop() *Reporter { return NewReporter("") }

func (r *Reporter) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

func (r *Reporter) Attach(s Sink) {
	if r == nil || s == nil {
		return
	}
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

func (r *Reporter) Emit(ctx context.Context, ev Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ev.Seq = r.seq
	ev.RunID = r.runID
	if ev.At.IsZero() {
		ev.At = r.now().UTC()
	}
	for _, s := range r.sinks {
		s.Emit(ctx, ev)
	}
}

func (r *Reporter) Step(ctx context.Context, step int, status Status, msg string) {
	r.Emit(ctx, Event{StepID: step, Status: status, Message: msg})
}

func (r *Reporter) StepProgress(ctx context.Context, step int, status Status, msg string, p Progress) {
	r.Emit(ctx, Event{StepID: step, Status: status, Message: msg, Progress: &p})
}

// Agent emits an agent_status event. The outer status is running while the agent runs and
// completed once it is done or blocked.
func (r *Reporter) Agent(ctx context.Context, step int, agentID string, st AgentStatus, msg string) {
	status := StatusCompleted
	if st == AgentRunning {
		status = StatusRunning
	}
	r.Emit(ctx, Event{
		StepID:      step,
		Status:      status,
		Message:     msg,
		EventType:   EventTypeAgentStatus,
		AgentID:     agentID,
		AgentStatus: st,
	})
}

func (r *Reporter) Final(ctx context.Context, msg string, data any) {
	r.Emit(ctx, Event{
		StepID:   FinalStep,
		Status:   StatusCompleted,
		Message:  msg,
		Progress: &Progress{Current: 100, Total: 100, Stage: "构建完成", Percent: 100},
		Data:     data,
	})
}

// Fail emits the run-level failure event.
func (r *Reporter) Fail(ctx context.Context, msg string) {
	r.Emit(ctx, Event{StepID: FailedStep, Status: StatusFailed, Message: msg})
}

// Percent is the integer percentage of current over total, 0 when total is not positive.
func Percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return current * 100 / total
}
