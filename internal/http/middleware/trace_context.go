package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/majorgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext puts correlation ids on the request context and echoes them back.
// Requests naming a school/college/major triple (query or path) are tagged with it so
// build logs can be grepped per graph. Must run after otelgin.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			RequestID: headerOr(c, headerRequestID, uuid.NewString),
			TraceID: headerOr(c, headerTraceID, func() string {
				if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
					return sc.TraceID().String()
				}
				return uuid.NewString()
			}),
		}
		if ref := refFromRequest(c); ref.Valid() {
			td.GraphRef = ref.String()
			c.Set("graph_ref", td.GraphRef)
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Set("trace_id", td.TraceID)
		c.Set("request_id", td.RequestID)
		c.Header(headerTraceID, td.TraceID)
		c.Header(headerRequestID, td.RequestID)
		c.Next()
	}
}

func headerOr(c *gin.Context, name string, fallback func() string) string {
	if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
		return v
	}
	return fallback()
}

// refFromRequest reads the triple from query params, falling back to route params
// (cache clear uses /:school/:college/:major).
func refFromRequest(c *gin.Context) types.GraphRef {
	ref := types.GraphRef{
		School:  c.Query("school"),
		College: c.Query("college"),
		Major:   c.Query("major"),
	}
	if !ref.Valid() {
		ref = types.GraphRef{School: c.Param("school"), College: c.Param("college"), Major: c.Param("major")}
	}
	return ref.Trimmed()
}
