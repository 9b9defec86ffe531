package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/yungbote/majorgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/envutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

// GraphIssue is one kind of degradation found while merging a graph. EntityType is empty
// for graph-wide issues.
type GraphIssue struct {
	Issue      string `json:"issue"`
	EntityType string `json:"entity_type,omitempty"`
	Count      int    `json:"count"`
}

type alertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var qualityAlerts alertState

// ReportGraphQuality counts the issues, logs them with the request's trace ids and, when
// GRAPH_QUALITY_ALERTS_ENABLED is set, posts a throttled alert to the webhook.
func ReportGraphQuality(ctx context.Context, log *logger.Logger, key string, issues []GraphIssue, meta map[string]any) {
	total := 0
	for _, is := range issues {
		if is.Count <= 0 {
			continue
		}
		total += is.Count
		Current().AddGraphQuality(is.Issue, is.EntityType, is.Count)
	}
	if total == 0 {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	ids := ctxutil.GetTraceData(ctx).Fields()
	for i := 0; i+1 < len(ids); i += 2 {
		meta[ids[i].(string)] = ids[i+1]
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Count > issues[j].Count })
	if log != nil {
		log.Warn("graph quality degraded", "key", key, "issues", issues, "meta", meta)
	}
	sendQualityAlert(key, issues, meta, log)
}

func sendQualityAlert(key string, issues []GraphIssue, meta map[string]any, log *logger.Logger) {
	if !envutil.Bool("GRAPH_QUALITY_ALERTS_ENABLED", false) {
		return
	}
	webhook := envutil.String("GRAPH_QUALITY_ALERT_WEBHOOK_URL", "")
	if webhook == "" {
		return
	}
	minInterval := envutil.Seconds("GRAPH_QUALITY_ALERT_MIN_INTERVAL_SECONDS", 5*time.Minute)
	qualityAlerts.mu.Lock()
	if qualityAlerts.last == nil {
		qualityAlerts.last = map[string]time.Time{}
	}
	if last := qualityAlerts.last[key]; !last.IsZero() && time.Since(last) < minInterval {
		qualityAlerts.mu.Unlock()
		return
	}
	qualityAlerts.last[key] = time.Now()
	qualityAlerts.mu.Unlock()

	body, _ := json.Marshal(map[string]any{
		"title":     "Graph quality degraded",
		"key":       key,
		"issues":    issues,
		"meta":      meta,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("graph quality alert request build failed", "error", err)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("graph quality alert post failed", "error", err)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("graph quality alert sent", "key", key, "status", resp.StatusCode)
	}
}
