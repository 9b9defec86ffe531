package progress

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/majorgraph-backend/internal/observability"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/realtime/bus"
)

// DefaultRunRetention is how long the hub remembers a run after its last event.
const DefaultRunRetention = 10 * time.Minute

// Hub delivers events to listeners that attach to a run by id after it was submitted,
// possibly on another instance when events arrive through the bus. It remembers recently
// active and finished runs so a listener attaching after the terminal event is closed at
// once instead of waiting forever.
type Hub struct {
	mu       sync.RWMutex
	log      *logger.Logger
	metrics  *observability.Metrics
	watchers map[string]map[*Stream]bool
	total    int

	// last event time per run, split by whether the run has ended.
	active    map[string]time.Time
	finished  map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		log:       log.With("component", "ProgressHub"),
		metrics:   observability.Current(),
		watchers:  make(map[string]map[*Stream]bool),
		active:    make(map[string]time.Time),
		finished:  make(map[string]time.Time),
		retention: DefaultRunRetention,
		now:       time.Now,
	}
}

// Watch registers a listener for runID. Only events emitted after the call are delivered;
// a run that already ended yields a closed stream. The returned func detaches the listener.
func (h *Hub) Watch(runID string) (*Stream, func()) {
	runID = strings.TrimSpace(runID)
	s := NewStream()
	h.mu.Lock()
	if _, done := h.finished[runID]; done {
		h.mu.Unlock()
		s.Close()
		return s, s.Detach
	}
	set, ok := h.watchers[runID]
	if !ok {
		set = make(map[*Stream]bool)
		h.watchers[runID] = set
	}
	set[s] = true
	h.total++
	h.metrics.SetProgressWatchers(h.total)
	h.mu.Unlock()
	h.log.Debug("progress watcher attached", "run_id", runID)

	return s, func() {
		h.remove(runID, s)
		s.Detach()
	}
}

func (h *Hub) remove(runID string, s *Stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.watchers[runID]
	if !ok || !set[s] {
		return
	}
	delete(set, s)
	h.total--
	h.metrics.SetProgressWatchers(h.total)
	if len(set) == 0 {
		delete(h.watchers, runID)
	}
}

// Known reports whether the hub saw an event for runID within the retention window.
func (h *Hub) Known(runID string) bool {
	runID = strings.TrimSpace(runID)
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, running := h.active[runID]
	_, done := h.finished[runID]
	return running || done
}

func (h *Hub) Watchers(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[runID])
}

// Emit implements Sink. A terminal event closes and releases every watcher of the run.
func (h *Hub) Emit(ctx context.Context, ev Event) {
	h.mu.Lock()
	if _, done := h.finished[ev.RunID]; !done {
		h.active[ev.RunID] = h.now()
	}
	set := h.watchers[ev.RunID]
	targets := make([]*Stream, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.Emit(ctx, ev)
	}
	if !ev.Terminal() {
		return
	}
	h.mu.Lock()
	set = h.watchers[ev.RunID]
	h.total -= len(set)
	delete(h.watchers, ev.RunID)
	delete(h.active, ev.RunID)
	h.finished[ev.RunID] = h.now()
	h.pruneLocked()
	h.metrics.SetProgressWatchers(h.total)
	h.mu.Unlock()
	for s := range set {
		s.Close()
	}
}

func (h *Hub) pruneLocked() {
	cutoff := h.now().Add(-h.retention)
	for _, m := range []map[string]time.Time{h.active, h.finished} {
		for id, at := range m {
			if at.Before(cutoff) {
				delete(m, id)
			}
		}
	}
}

// Forward decodes a bus message and dispatches it.
func (h *Hub) Forward(m bus.Message) {
	var ev Event
	if err := json.Unmarshal(m.Event, &ev); err != nil {
		h.log.Warn("bad progress event on bus", "run_id", m.RunID, "error", err)
		return
	}
	if ev.RunID == "" {
		ev.RunID = m.RunID
	}
	h.Emit(context.Background(), ev)
}
