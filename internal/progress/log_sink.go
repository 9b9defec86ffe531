package progress

import (
	"context"

	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

// LogSink writes every event at debug level and failures at warn level.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSink{log: log.With("component", "progress")}
}

func (s *LogSink) Emit(_ context.Context, ev Event) {
	kv := []any{"run_id", ev.RunID, "step_id", ev.StepID, "status", ev.Status, "message", ev.Message}
	if ev.IsAgent() {
		kv = append(kv, "agent_id", ev.AgentID, "agent_status", ev.AgentStatus)
	}
	if ev.Status == StatusFailed {
		s.log.Warn("graph build step failed", kv...)
		return
	}
	s.log.Debug("graph build progress", kv...)
}
