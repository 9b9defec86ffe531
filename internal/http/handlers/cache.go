package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/majorgraph-backend/internal/graphstore"
	"github.com/yungbote/majorgraph-backend/internal/http/response"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

// CacheStore is the administrative view of the tiered graph store. Nothing here builds
// a graph.
type CacheStore interface {
	Inspect(ctx context.Context, key graphstore.Key) graphstore.Presence
	List(school string) []graphstore.Meta
	Stats() (graphstore.Stats, error)
	Delete(ctx context.Context, key graphstore.Key) error
	ClearMemory() int
	CompressExisting(ctx context.Context) (int, error)
	BackendAvailable() bool
	Dir() string
}

type CacheHandler struct {
	store CacheStore
	log   *logger.Logger
}

func NewCacheHandler(store CacheStore, log *logger.Logger) *CacheHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CacheHandler{store: store, log: log.With("handler", "CacheHandler")}
}

func storageBackend(p graphstore.Presence) string {
	switch {
	case p.Memory:
		return "memory"
	case p.Backend:
		return "neo4j"
	case p.Compressed:
		return "compressed"
	case p.Legacy:
		return "legacy_json"
	default:
		return "none"
	}
}

// GET /api/cache/check?school=&college=&major=
func (h *CacheHandler) Check(c *gin.Context) {
	ref := refFromQuery(c)
	if !ref.Valid() {
		response.RespondErr(c, errBadRef, http.StatusBadRequest, "invalid_graph_ref")
		return
	}
	p := h.store.Inspect(c.Request.Context(), graphstore.KeyFor(ref))
	response.RespondOK(c, gin.H{
		"school":          ref.School,
		"college":         ref.College,
		"major":           ref.Major,
		"cache_key":       p.Key.ID,
		"exists":          p,
		"will_use_cache":  p.Any(),
		"storage_backend": storageBackend(p),
	})
}

// GET /api/cache/list?school=
func (h *CacheHandler) List(c *gin.Context) {
	graphs := h.store.List(c.Query("school"))
	if graphs == nil {
		graphs = []graphstore.Meta{}
	}
	response.RespondOK(c, gin.H{"total": len(graphs), "graphs": graphs})
}

// GET /api/cache/stats
func (h *CacheHandler) Stats(c *gin.Context) {
	st, err := h.store.Stats()
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "cache_stats_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"stats": st})
}

// POST /api/cache/clear/:school/:college/:major
func (h *CacheHandler) Clear(c *gin.Context) {
	ref := types.GraphRef{
		School:  c.Param("school"),
		College: c.Param("college"),
		Major:   c.Param("major"),
	}.Trimmed()
	if !ref.Valid() {
		response.RespondErr(c, errBadRef, http.StatusBadRequest, "invalid_graph_ref")
		return
	}
	key := graphstore.KeyFor(ref)
	before := h.store.Inspect(c.Request.Context(), key)
	if err := h.store.Delete(c.Request.Context(), key); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "cache_clear_failed", err)
		return
	}
	deleted := make([]string, 0, 4)
	for tier, present := range map[string]bool{
		"memory":      before.Memory,
		"neo4j":       before.Backend,
		"compressed":  before.Compressed,
		"legacy_json": before.Legacy,
	} {
		if present {
			deleted = append(deleted, tier)
		}
	}
	h.log.Info("graph cache cleared", "ref", ref.String(), "tiers", deleted)
	response.RespondOK(c, gin.H{
		"cache_key":     key.ID,
		"deleted_types": sortStrings(deleted),
	})
}

// POST /api/cache/clear-memory
func (h *CacheHandler) ClearMemory(c *gin.Context) {
	n := h.store.ClearMemory()
	response.RespondOK(c, gin.H{"status": "success", "message": "内存缓存已清空", "cleared": n})
}

// POST /api/data/cache/compress-existing
func (h *CacheHandler) CompressExisting(c *gin.Context) {
	n, err := h.store.CompressExisting(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "compress_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success", "converted_count": n})
}

// GET /api/admin/storage-status
func (h *CacheHandler) StorageStatus(c *gin.Context) {
	out := gin.H{
		"storage_dir":     h.store.Dir(),
		"neo4j_connected": h.store.BackendAvailable(),
	}
	if st, err := h.store.Stats(); err != nil {
		out["stats_error"] = err.Error()
	} else {
		out["stats"] = st
	}
	response.RespondOK(c, out)
}
