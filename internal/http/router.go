package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/majorgraph-backend/internal/http/handlers"
	httpMW "github.com/yungbote/majorgraph-backend/internal/http/middleware"
	"github.com/yungbote/majorgraph-backend/internal/observability"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string

	GraphHandler     *httpH.GraphHandler
	CacheHandler     *httpH.CacheHandler
	HierarchyHandler *httpH.HierarchyHandler
	DataHandler      *httpH.DataHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "majorgraph"
	}
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")

	// Hierarchy
	if cfg.HierarchyHandler != nil {
		api.GET("/schools", cfg.HierarchyHandler.ListSchools)
		api.GET("/schools/:school/colleges", cfg.HierarchyHandler.ListColleges)
		api.GET("/schools/:school/colleges/:college/majors", cfg.HierarchyHandler.ListMajors)
		api.POST("/admin/refresh-hierarchy-cache", cfg.HierarchyHandler.Refresh)
		api.GET("/admin/hierarchy-cache-stats", cfg.HierarchyHandler.CacheStats)
	}

	// Graph builds
	if cfg.GraphHandler != nil {
		api.GET("/agent/stream-build-graph", cfg.GraphHandler.StreamBuildGraph)
		api.POST("/agent/build-graph", cfg.GraphHandler.BuildGraph)
		api.GET("/graph", cfg.GraphHandler.GetGraph)
		api.GET("/graph/runs/:id", cfg.GraphHandler.GetRun)
		api.GET("/graph/runs/:id/stream", cfg.GraphHandler.StreamRun)
	}

	// Cache administration
	if cfg.CacheHandler != nil {
		api.GET("/cache/check", cfg.CacheHandler.Check)
		api.GET("/cache/list", cfg.CacheHandler.List)
		api.GET("/cache/stats", cfg.CacheHandler.Stats)
		api.POST("/cache/clear/:school/:college/:major", cfg.CacheHandler.Clear)
		api.POST("/cache/clear-memory", cfg.CacheHandler.ClearMemory)
		api.GET("/admin/storage-status", cfg.CacheHandler.StorageStatus)

		data := api.Group("/data/cache")
		data.POST("/compress-existing", cfg.CacheHandler.CompressExisting)
		data.GET("/clear-memory", cfg.CacheHandler.ClearMemory)
	}

	// Data sources
	if cfg.DataHandler != nil {
		api.GET("/stats", cfg.DataHandler.MajorStats)
		api.GET("/data/stats", cfg.DataHandler.Stats)
		api.GET("/data/search", cfg.DataHandler.Search)
		api.GET("/data/sample/:major", cfg.DataHandler.Sample)
	}

	return r
}
