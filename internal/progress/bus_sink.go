package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/realtime/bus"
)

const publishTimeout = 2 * time.Second

// BusSink publishes events so watchers on other instances can follow a run.
type BusSink struct {
	bus bus.Bus
	log *logger.Logger
}

func NewBusSink(b bus.Bus, log *logger.Logger) *BusSink {
	if log == nil {
		log = logger.Nop()
	}
	return &BusSink{bus: b, log: log.With("component", "ProgressBusSink")}
}

func (s *BusSink) Emit(ctx context.Context, ev Event) {
	if s == nil || s.bus == nil {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("progress event encode failed", "run_id", ev.RunID, "error", err)
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.bus.Publish(pctx, bus.Message{RunID: ev.RunID, Event: raw}); err != nil {
		s.log.Warn("progress publish failed", "run_id", ev.RunID, "step_id", ev.StepID, "error", err)
	}
}
