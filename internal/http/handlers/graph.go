package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/majorgraph-backend/internal/graphstore"
	"github.com/yungbote/majorgraph-backend/internal/http/response"
	"github.com/yungbote/majorgraph-backend/internal/jobs/worker"
	"github.com/yungbote/majorgraph-backend/internal/platform/apierr"
	"github.com/yungbote/majorgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/progress"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

type BuildSubmitter interface {
	Submit(ctx context.Context, ref types.GraphRef) (*worker.Run, error)
}

type GraphLoader interface {
	Load(ctx context.Context, key graphstore.Key) (*types.Graph, error)
}

type RunLookup interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GraphBuildRun, error)
}

type RunWatcher interface {
	Watch(runID string) (*progress.Stream, func())
	// Known reports runs whose events were seen recently, on any instance.
	Known(runID string) bool
}

// ActiveRuns reports runs queued or running in this process.
type ActiveRuns interface {
	Active(runID string) bool
}

type GraphHandlerDeps struct {
	Builds  BuildSubmitter
	Graphs  GraphLoader
	Runs    RunLookup
	Watcher RunWatcher
	// Active is consulted instead of Runs when run history is not configured.
	Active ActiveRuns
	Log    *logger.Logger
}

type GraphHandler struct {
	builds  BuildSubmitter
	graphs  GraphLoader
	runs    RunLookup
	watcher RunWatcher
	active  ActiveRuns
	log     *logger.Logger
}

func NewGraphHandler(deps GraphHandlerDeps) *GraphHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &GraphHandler{
		builds:  deps.Builds,
		graphs:  deps.Graphs,
		runs:    deps.Runs,
		watcher: deps.Watcher,
		active:  deps.Active,
		log:     log.With("handler", "GraphHandler"),
	}
}

func refFromQuery(c *gin.Context) types.GraphRef {
	return types.GraphRef{
		School:  c.Query("school"),
		College: c.Query("college"),
		Major:   c.Query("major"),
	}.Trimmed()
}

func startNDJSON(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "application/x-ndjson; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
}

// GET /api/agent/stream-build-graph?school=&college=&major=
func (h *GraphHandler) StreamBuildGraph(c *gin.Context) {
	ref := refFromQuery(c)
	if !ref.Valid() {
		response.RespondErr(c, errBadRef, http.StatusBadRequest, "invalid_graph_ref")
		return
	}
	run, err := h.builds.Submit(c.Request.Context(), ref)
	if err != nil {
		response.RespondErr(c, err, http.StatusInternalServerError, "submit_failed")
		return
	}
	c.Header("X-Run-Id", run.ID)
	startNDJSON(c)
	if err := run.Stream.WriteNDJSON(c.Request.Context(), c.Writer, c.Writer.Flush); err != nil {
		// The run keeps going; only this listener is gone.
		h.log.Info("build stream listener left", "run_id", run.ID, "error", err)
	}
}

type buildGraphRequest struct {
	School  string `json:"school"`
	College string `json:"college"`
	Major   string `json:"major"`
}

// POST /api/agent/build-graph
func (h *GraphHandler) BuildGraph(c *gin.Context) {
	var req buildGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ref := types.GraphRef{School: req.School, College: req.College, Major: req.Major}
	run, err := h.builds.Submit(c.Request.Context(), ref)
	if err != nil {
		response.RespondErr(c, err, http.StatusInternalServerError, "submit_failed")
		return
	}
	// Nobody reads the submitter's own stream here; watchers attach through the run stream endpoint.
	run.Stream.Detach()
	c.JSON(http.StatusAccepted, gin.H{
		"status":  types.RunStatusQueued,
		"run_id":  run.ID,
		"message": "图谱构建任务已提交",
	})
}

// GET /api/graph?school=&college=&major=
func (h *GraphHandler) GetGraph(c *gin.Context) {
	ref := refFromQuery(c)
	if !ref.Valid() {
		response.RespondErr(c, errBadRef, http.StatusBadRequest, "invalid_graph_ref")
		return
	}
	key := graphstore.KeyFor(ref)
	g, err := h.graphs.Load(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, graphstore.ErrNotFound) {
			err = apierr.New(http.StatusNotFound, "graph_unavailable", err)
		}
		response.RespondErr(c, err, http.StatusInternalServerError, "graph_load_failed")
		return
	}
	response.RespondOK(c, gin.H{
		"key":           key.ID,
		"school":        ref.School,
		"college":       ref.College,
		"major":         ref.Major,
		"entities":      g.Entities,
		"relationships": g.ResolvedRelationships(),
	})
}

func (h *GraphHandler) parseRunID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/graph/runs/:id
func (h *GraphHandler) GetRun(c *gin.Context) {
	id, ok := h.parseRunID(c)
	if !ok {
		return
	}
	if h.runs == nil {
		response.RespondErr(c, errRunHistoryDisabled, http.StatusServiceUnavailable, "run_history_disabled")
		return
	}
	run, err := h.runs.GetByID(dbctx.With(c.Request.Context()), id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "run_lookup_failed", err)
		return
	}
	if run == nil {
		response.RespondErr(c, errRunNotFound, http.StatusNotFound, "run_not_found")
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// GET /api/graph/runs/:id/stream
// Delivers the events the run emits from now on; a finished run yields an empty stream.
func (h *GraphHandler) StreamRun(c *gin.Context) {
	id, ok := h.parseRunID(c)
	if !ok {
		return
	}
	if h.runs == nil {
		if !h.watcher.Known(id.String()) && (h.active == nil || !h.active.Active(id.String())) {
			response.RespondErr(c, errRunNotFound, http.StatusNotFound, "run_not_found")
			return
		}
	} else {
		run, err := h.runs.GetByID(dbctx.With(c.Request.Context()), id)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "run_lookup_failed", err)
			return
		}
		if run == nil {
			response.RespondErr(c, errRunNotFound, http.StatusNotFound, "run_not_found")
			return
		}
		if run.Status == types.RunStatusSucceeded || run.Status == types.RunStatusFailed {
			startNDJSON(c)
			return
		}
	}
	stream, detach := h.watcher.Watch(id.String())
	defer detach()
	startNDJSON(c)
	if err := stream.WriteNDJSON(c.Request.Context(), c.Writer, c.Writer.Flush); err != nil {
		h.log.Debug("run watcher left", "run_id", id.String(), "error", err)
	}
}
