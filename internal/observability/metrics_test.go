package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTier("memory", "load", "hit")
	m.ObserveEviction("memory", 2)
	m.ObserveBuildStage("merge", "completed", time.Second)
	m.ObserveAPI("GET", "/x", 200, time.Millisecond)
	m.SetWorkerQueueDepth(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: want=%d got=%d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestTierAndStageMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveTier("memory", "load", "hit")
	m.ObserveTier("memory", "load", "hit")
	m.ObserveTier("compressed", "save", "error")
	m.ObserveEviction("memory", 3)
	m.ObserveGraph(map[types.EntityType]int{types.EntitySkill: 30})

	if got := testutil.ToFloat64(m.tierOps.WithLabelValues("memory", "load", "hit")); got != 2 {
		t.Fatalf("memory hits: want=2 got=%v", got)
	}
	if got := testutil.ToFloat64(m.tierEvictions.WithLabelValues("memory")); got != 3 {
		t.Fatalf("evictions: want=3 got=%v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "mg_graph_cache_tier_ops_total") || !strings.Contains(body, "mg_graph_entities") {
		t.Fatalf("exposition missing metrics:\n%s", body)
	}
}

func TestReportGraphQualityAlertThrottled(t *testing.T) {
	var posts atomic.Int32
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	t.Setenv("GRAPH_QUALITY_ALERTS_ENABLED", "true")
	t.Setenv("GRAPH_QUALITY_ALERT_WEBHOOK_URL", srv.URL)
	t.Setenv("GRAPH_QUALITY_ALERT_MIN_INTERVAL_SECONDS", "3600")

	issues := []GraphIssue{{Issue: "shortfall", EntityType: "Skill", Count: 4}}
	ReportGraphQuality(context.Background(), nil, "alert-test-key", issues, nil)
	ReportGraphQuality(context.Background(), nil, "alert-test-key", issues, nil)

	if n := posts.Load(); n != 1 {
		t.Fatalf("posts: want=1 got=%d", n)
	}
	if got["key"] != "alert-test-key" {
		t.Fatalf("payload key: got=%v", got["key"])
	}

	ReportGraphQuality(context.Background(), nil, "no-issues", []GraphIssue{{Issue: "gap", Count: 0}}, nil)
	if n := posts.Load(); n != 1 {
		t.Fatalf("zero-count issues must not alert, posts=%d", n)
	}
}
