package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/majorgraph-backend/internal/graphstore"
	"github.com/yungbote/majorgraph-backend/internal/http/response"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

type StatsSource interface {
	Name() string
	DatasetStats() types.DatasetStats
}

type JobSearcher interface {
	SearchJobsByMajor(ctx context.Context, major string, limit int) ([]types.JobRecord, error)
}

type Sampler interface {
	SampleText(ctx context.Context, major string, size int) (string, int, error)
}

type CacheStatser interface {
	Stats() (graphstore.Stats, error)
}

type DataHandlerDeps struct {
	Sources []StatsSource
	Search  JobSearcher
	Sampler Sampler
	Cache   CacheStatser
	Log     *logger.Logger
}

type DataHandler struct {
	sources []StatsSource
	search  JobSearcher
	sampler Sampler
	cache   CacheStatser
	log     *logger.Logger
}

func NewDataHandler(deps DataHandlerDeps) *DataHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &DataHandler{
		sources: deps.Sources,
		search:  deps.Search,
		sampler: deps.Sampler,
		cache:   deps.Cache,
		log:     log.With("handler", "DataHandler"),
	}
}

const samplePreviewRunes = 1000

// intQuery parses a bounded integer query parameter; absent means def.
func intQuery(c *gin.Context, name string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: not a number", name)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s: must be between %d and %d", name, min, max)
	}
	return n, nil
}

// GET /api/data/stats
func (h *DataHandler) Stats(c *gin.Context) {
	sources := make([]gin.H, 0, len(h.sources))
	for _, s := range h.sources {
		sources = append(sources, gin.H{"source": s.Name(), "stats": s.DatasetStats()})
	}
	out := gin.H{"status": "success", "sources": sources}
	if h.cache != nil {
		if st, err := h.cache.Stats(); err == nil {
			out["graph_cache"] = st
		} else {
			h.log.Warn("graph cache stats failed", "error", err)
		}
	}
	response.RespondOK(c, out)
}

// GET /api/data/search?keyword=&limit=
func (h *DataHandler) Search(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_keyword", fmt.Errorf("keyword is required"))
		return
	}
	limit, err := intQuery(c, "limit", 20, 1, 100)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
		return
	}
	if h.search == nil {
		response.RespondOK(c, gin.H{"status": "success", "keyword": keyword, "total_found": 0, "jobs": []types.JobRecord{}})
		return
	}
	jobs, err := h.search.SearchJobsByMajor(c.Request.Context(), keyword, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	if jobs == nil {
		jobs = []types.JobRecord{}
	}
	response.RespondOK(c, gin.H{"status": "success", "keyword": keyword, "total_found": len(jobs), "jobs": jobs})
}

// GET /api/data/sample/:major?sample_size=
func (h *DataHandler) Sample(c *gin.Context) {
	major := strings.TrimSpace(c.Param("major"))
	size, err := intQuery(c, "sample_size", 10, 1, 50)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_sample_size", err)
		return
	}
	if major == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_major", fmt.Errorf("major is required"))
		return
	}
	if h.sampler == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "sampler_unavailable", fmt.Errorf("no job source configured"))
		return
	}
	text, n, err := h.sampler.SampleText(c.Request.Context(), major, size)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "sample_failed", err)
		return
	}
	runes := []rune(text)
	preview := text
	if len(runes) > samplePreviewRunes {
		preview = string(runes[:samplePreviewRunes]) + "..."
	}
	response.RespondOK(c, gin.H{
		"status":         "success",
		"major":          major,
		"sample_size":    size,
		"jobs_sampled":   n,
		"text_length":    len(runes),
		"sample_preview": preview,
	})
}

// GET /api/stats?major=
// Display figures for the landing page, derived from the major name alone.
func (h *DataHandler) MajorStats(c *gin.Context) {
	major := strings.TrimSpace(c.Query("major"))
	if major == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_major", fmt.Errorf("major is required"))
		return
	}
	base := 0
	for _, r := range major {
		base += int(r)
	}
	response.RespondOK(c, gin.H{
		"jobs":      fmt.Sprintf("相关就业岗位%d万个", (base*13)%100+20),
		"companies": fmt.Sprintf("相关企业%d家", (base*113)%5000+2000),
		"reports":   fmt.Sprintf("行业发展报告%d个", (base*7)%30+5),
		"policies":  fmt.Sprintf("政策文件%d个", (base*3)%20+5),
	})
}
