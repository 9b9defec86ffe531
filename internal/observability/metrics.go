package observability

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/majorgraph-backend/internal/platform/envutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	tierOps       *prometheus.CounterVec
	tierEvictions *prometheus.CounterVec

	buildStage    *prometheus.HistogramVec
	buildRuns     *prometheus.CounterVec
	buildRunTime  prometheus.Histogram
	graphQuality  *prometheus.CounterVec
	graphEntities *prometheus.HistogramVec
	workerQueue   prometheus.Gauge
	progressWatch prometheus.Gauge
	runsByStatus  *prometheus.GaugeVec
	llmRequests   *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	llmTokens     *prometheus.CounterVec
	redisUp       prometheus.Gauge
	redisPing     prometheus.Gauge
	dbOpenConns   prometheus.Gauge
	dbInUseConns  prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Enabled reads METRICS_ENABLED.
func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

// Init builds the process-wide metrics set. It returns nil when metrics are disabled; every
// method is safe on a nil receiver.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics(prometheus.NewRegistry())
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// NewMetrics registers the collectors on reg. Tests pass their own registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mg_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mg_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mg_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		tierOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mg_graph_cache_tier_ops_total",
			Help: "Graph cache tier operations by tier/op/outcome.",
		}, []string{"tier", "op", "outcome"}),
		tierEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mg_graph_cache_evictions_total",
			Help: "Graphs evicted from a bounded tier.",
		}, []string{"tier"}),
		buildStage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mg_graph_build_stage_duration_seconds",
			Help:    "Synthesis stage duration by stage/status.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage", "status"}),
		buildRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mg_graph_build_runs_total",
			Help: "Synthesis runs by terminal status.",
		}, []string{"status"}),
		buildRunTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mg_graph_build_run_duration_seconds",
			Help:    "End-to-end synthesis run duration.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		graphQuality: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mg_graph_quality_issues_total",
			Help: "Graph quality issues found while merging, by issue/type.",
		}, []string{"issue", "entity_type"}),
		graphEntities: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mg_graph_entities",
			Help:    "Entities per built graph by type.",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 200, 500, 1000},
		}, []string{"entity_type"}),
		workerQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mg_worker_queue_depth",
			Help: "Build requests waiting for a worker.",
		}),
		progressWatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mg_progress_watchers",
			Help: "Attached progress stream listeners.",
		}),
		runsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mg_graph_build_runs_by_status",
			Help: "Persisted synthesis runs by status.",
		}, []string{"status"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mg_llm_requests_total",
			Help: "Extractor LLM requests by model/status.",
		}, []string{"model", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mg_llm_request_duration_seconds",
			Help:    "Extractor LLM latency by model/status.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"model", "status"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mg_llm_tokens_total",
			Help: "Extractor LLM tokens by model/direction.",
		}, []string{"model", "direction"}),
		redisUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mg_redis_up",
			Help: "1 when the last redis ping succeeded.",
		}),
		redisPing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mg_redis_ping_seconds",
			Help: "Latency of the last redis ping.",
		}),
		dbOpenConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mg_db_open_connections",
			Help: "Open database connections.",
		}),
		dbInUseConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mg_db_in_use_connections",
			Help: "Database connections in use.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.tierOps, m.tierEvictions,
		m.buildStage, m.buildRuns, m.buildRunTime, m.graphQuality, m.graphEntities,
		m.workerQueue, m.progressWatch, m.runsByStatus,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.redisUp, m.redisPing, m.dbOpenConns, m.dbInUseConns,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	code := strconv.Itoa(status)
	m.apiRequests.WithLabelValues(method, orUnknown(route), code).Inc()
	m.apiLatency.WithLabelValues(method, orUnknown(route), code).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveTier and ObserveEviction satisfy the graph store's observer.
func (m *Metrics) ObserveTier(tier, op, outcome string) {
	if m == nil {
		return
	}
	m.tierOps.WithLabelValues(orUnknown(tier), orUnknown(op), orUnknown(outcome)).Inc()
}

func (m *Metrics) ObserveEviction(tier string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tierEvictions.WithLabelValues(orUnknown(tier)).Add(float64(n))
}

func (m *Metrics) ObserveBuildStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.buildStage.WithLabelValues(orUnknown(stage), orUnknown(status)).Observe(dur.Seconds())
}

func (m *Metrics) ObserveBuildRun(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.buildRuns.WithLabelValues(orUnknown(status)).Inc()
	if dur > 0 {
		m.buildRunTime.Observe(dur.Seconds())
	}
}

func (m *Metrics) ObserveGraph(counts map[types.EntityType]int) {
	if m == nil {
		return
	}
	for _, t := range types.EntityTypes() {
		m.graphEntities.WithLabelValues(string(t)).Observe(float64(counts[t]))
	}
}

func (m *Metrics) AddGraphQuality(issue, entityType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.graphQuality.WithLabelValues(orUnknown(issue), orUnknown(entityType)).Add(float64(n))
}

func (m *Metrics) SetWorkerQueueDepth(n int) {
	if m == nil {
		return
	}
	m.workerQueue.Set(float64(n))
}

func (m *Metrics) SetProgressWatchers(n int) {
	if m == nil {
		return
	}
	m.progressWatch.Set(float64(n))
}

func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration, inputTokens, outputTokens int64) {
	if m == nil {
		return
	}
	model, status = orUnknown(model), orUnknown(status)
	m.llmRequests.WithLabelValues(model, status).Inc()
	m.llmLatency.WithLabelValues(model, status).Observe(dur.Seconds())
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// StartRedisCollector pings the client every scrape interval until ctx ends.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// StartRunCollector samples connection-pool stats and the graph_build_run status counts.
func (m *Metrics) StartRunCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{types.RunStatusQueued, types.RunStatusRunning, types.RunStatusSucceeded, types.RunStatusFailed}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if sqlDB, err := db.DB(); err == nil {
					st := sqlDB.Stats()
					m.dbOpenConns.Set(float64(st.OpenConnections))
					m.dbInUseConns.Set(float64(st.InUse))
				}
				type row struct {
					Status string
					Count  int64
				}
				var rows []row
				err := db.WithContext(ctx).
					Model(&types.GraphBuildRun{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error
				if err != nil {
					if log != nil {
						log.Warn("metrics: run status scan failed", "error", err)
					}
					continue
				}
				counts := map[string]int64{}
				for _, r := range rows {
					counts[r.Status] = r.Count
				}
				for _, s := range statuses {
					m.runsByStatus.WithLabelValues(s).Set(float64(counts[s]))
				}
			}
		}
	}()
}
