package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/majorgraph-backend/internal/data/db"
	"github.com/yungbote/majorgraph-backend/internal/data/repos"
	"github.com/yungbote/majorgraph-backend/internal/http"
	"github.com/yungbote/majorgraph-backend/internal/observability"
	"github.com/yungbote/majorgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    repos.Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics

	dbService    *db.Service
	server       *http.Server
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	dbs, err := db.Open(db.ConfigFromEnv(), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	theDB := dbs.DB()

	reposet := wireRepos(theDB, log)
	failAbandonedRuns(log, reposet, cfg.AbandonedRunAge)

	clients, err := wireClients(log)
	if err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(log, cfg, clients, reposet, metrics)
	if err != nil {
		clients.Close()
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, reposet)
	server := http.NewServer(routerConfig(cfg, log, metrics, handlerset))

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       server.Engine,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		dbService:    dbs,
		server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// failAbandonedRuns closes out history rows left running by a previous process.
func failAbandonedRuns(log *logger.Logger, reposet repos.Repos, age time.Duration) {
	if age <= 0 {
		return
	}
	n, err := reposet.Runs.FailAbandoned(dbctx.Background(), time.Now().Add(-age), "服务重启，构建任务中断")
	if err != nil {
		log.Warn("Failed to close abandoned graph build runs", "error", err)
		return
	}
	if n > 0 {
		log.Info("Closed abandoned graph build runs", "count", n)
	}
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Clients.ProgressBus != nil {
		if err := a.Clients.ProgressBus.StartForwarder(ctx, a.Services.Hub.Forward); err != nil {
			a.Log.Error("Progress bus forwarder failed to start", "error", err)
		}
	}
	a.Services.Worker.Start(ctx)

	a.Metrics.StartRunCollector(ctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.redisClient())
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
}

// Run serves HTTP until Shutdown is called.
func (a *App) Run(addr string) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "addr", addr)
	return a.server.Run(addr)
}

// Shutdown stops accepting requests, then drains the build queue.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	if a.Services.Worker != nil {
		a.Services.Worker.Stop()
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
