package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

// RunUpdater persists field updates for a graph build run.
type RunUpdater interface {
	UpdateFields(ctx context.Context, runID string, updates map[string]interface{}) error
}

// RunRecorder mirrors step events into the run history table. Agent events are not
// recorded.
type RunRecorder struct {
	repo RunUpdater
	log  *logger.Logger
}

func NewRunRecorder(repo RunUpdater, log *logger.Logger) *RunRecorder {
	if log == nil {
		log = logger.Nop()
	}
	return &RunRecorder{repo: repo, log: log.With("component", "RunRecorder")}
}

func (r *RunRecorder) Emit(ctx context.Context, ev Event) {
	if r == nil || r.repo == nil || ev.RunID == "" || ev.IsAgent() {
		return
	}
	updates := map[string]interface{}{
		"step_id":    ev.StepID,
		"message":    ev.Message,
		"updated_at": time.Now().UTC(),
	}
	if ev.Progress != nil {
		updates["stage"] = ev.Progress.Stage
		updates["progress"] = ev.Progress.Percent
	}
	switch {
	case ev.StepID == FailedStep:
		updates["status"] = string(types.RunStatusFailed)
		updates["error"] = ev.Message
	case ev.StepID == FinalStep && ev.Status == StatusCompleted:
		updates["status"] = string(types.RunStatusSucceeded)
		updates["progress"] = 100
		if summary, err := summarize(ev.Data); err == nil && summary != nil {
			updates["summary"] = datatypes.JSON(summary)
		}
	default:
		updates["status"] = string(types.RunStatusRunning)
		if ev.Progress == nil {
			updates["stage"] = fmt.Sprintf("step_%d", ev.StepID)
		}
	}

	// The run row must reflect progress even when the listener is gone.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.repo.UpdateFields(wctx, ev.RunID, updates); err != nil {
		r.log.Warn("run progress update failed", "run_id", ev.RunID, "step_id", ev.StepID, "error", err)
	}
}

// RunSummary is stored with a finished run.
type RunSummary struct {
	EntityCount   int            `json:"entity_count"`
	RelationCount int            `json:"relation_count"`
	TypeCounts    map[string]int `json:"type_counts"`
}

func summarize(data any) ([]byte, error) {
	g, ok := data.(*types.Graph)
	if !ok || g == nil {
		return nil, nil
	}
	s := RunSummary{
		EntityCount:   len(g.Entities),
		RelationCount: len(g.Relationships),
		TypeCounts:    map[string]int{},
	}
	for t, n := range g.CountByType() {
		s.TypeCounts[string(t)] = n
	}
	return json.Marshal(s)
}
