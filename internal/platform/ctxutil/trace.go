package ctxutil

import "context"

type traceDataKey struct{}

// TraceData carries correlation ids for logs and quality alerts. RunID and GraphRef are
// filled once a request is tied to a synthesis run or a school/college/major triple.
type TraceData struct {
	TraceID   string
	RequestID string
	RunID     string
	GraphRef  string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// WithRun returns ctx with a copy of its trace data stamped with runID.
func WithRun(ctx context.Context, runID string) context.Context {
	next := TraceData{}
	if td := GetTraceData(ctx); td != nil {
		next = *td
	}
	next.RunID = runID
	return WithTraceData(ctx, &next)
}

// Fields flattens the non-empty ids into logger key/value pairs.
func (td *TraceData) Fields() []interface{} {
	if td == nil {
		return nil
	}
	var out []interface{}
	for _, kv := range [][2]string{
		{"trace_id", td.TraceID},
		{"request_id", td.RequestID},
		{"run_id", td.RunID},
		{"graph_ref", td.GraphRef},
	} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}
