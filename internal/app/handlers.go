package app

import (
	"github.com/yungbote/majorgraph-backend/internal/data/repos"
	"github.com/yungbote/majorgraph-backend/internal/http"
	httpH "github.com/yungbote/majorgraph-backend/internal/http/handlers"
	"github.com/yungbote/majorgraph-backend/internal/observability"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Graph     *httpH.GraphHandler
	Cache     *httpH.CacheHandler
	Hierarchy *httpH.HierarchyHandler
	Data      *httpH.DataHandler
}

func wireHandlers(log *logger.Logger, services Services, reposet repos.Repos) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(),
		Graph: httpH.NewGraphHandler(httpH.GraphHandlerDeps{
			Builds:  services.Worker,
			Graphs:  services.Store,
			Runs:    reposet.Runs,
			Watcher: services.Hub,
			Active:  services.Worker,
			Log:     log,
		}),
		Cache:     httpH.NewCacheHandler(services.Store, log),
		Hierarchy: httpH.NewHierarchyHandler(services.Hierarchy, log),
		Data: httpH.NewDataHandler(httpH.DataHandlerDeps{
			Sources: []httpH.StatsSource{services.Province, services.Campus},
			Search:  services.Province,
			Sampler: services.Synthesis,
			Cache:   services.Store,
			Log:     log,
		}),
	}
}

func routerConfig(cfg Config, log *logger.Logger, metrics *observability.Metrics, h Handlers) http.RouterConfig {
	return http.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		ServiceName:      cfg.ServiceName,
		HealthHandler:    h.Health,
		GraphHandler:     h.Graph,
		CacheHandler:     h.Cache,
		HierarchyHandler: h.Hierarchy,
		DataHandler:      h.Data,
	}
}
