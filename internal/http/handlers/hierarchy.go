package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/majorgraph-backend/internal/hierarchy"
	"github.com/yungbote/majorgraph-backend/internal/http/response"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

type HierarchyReader interface {
	Schools(ctx context.Context) ([]string, error)
	Colleges(ctx context.Context, school string) ([]string, error)
	Majors(ctx context.Context, school, college string) ([]string, error)
	Refresh(ctx context.Context) (types.Hierarchy, error)
	Stats(ctx context.Context) (hierarchy.Stats, error)
}

type HierarchyHandler struct {
	svc HierarchyReader
	log *logger.Logger
}

func NewHierarchyHandler(svc HierarchyReader, log *logger.Logger) *HierarchyHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &HierarchyHandler{svc: svc, log: log.With("handler", "HierarchyHandler")}
}

func hierarchyError(c *gin.Context, err error) {
	response.RespondErr(c, err, http.StatusInternalServerError, "hierarchy_unavailable")
}

// GET /api/schools
func (h *HierarchyHandler) ListSchools(c *gin.Context) {
	out, err := h.svc.Schools(c.Request.Context())
	if err != nil {
		hierarchyError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/schools/:school/colleges
func (h *HierarchyHandler) ListColleges(c *gin.Context) {
	out, err := h.svc.Colleges(c.Request.Context(), c.Param("school"))
	if err != nil {
		hierarchyError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/schools/:school/colleges/:college/majors
func (h *HierarchyHandler) ListMajors(c *gin.Context) {
	out, err := h.svc.Majors(c.Request.Context(), c.Param("school"), c.Param("college"))
	if err != nil {
		hierarchyError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/admin/refresh-hierarchy-cache
func (h *HierarchyHandler) Refresh(c *gin.Context) {
	hier, err := h.svc.Refresh(c.Request.Context())
	if err != nil {
		h.log.Error("hierarchy refresh failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "refresh_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"status":        "success",
		"message":       "缓存刷新成功",
		"schools_count": len(hier),
	})
}

// GET /api/admin/hierarchy-cache-stats
func (h *HierarchyHandler) CacheStats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		hierarchyError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"status":        "success",
		"cache_stats":   st,
		"memory_cached": st.MemoryCached,
	})
}
