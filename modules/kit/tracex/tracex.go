package tracex

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type passIDKey struct{}
type traceIDKey struct{}

// WithPassID 给一次存档/读档流程打上 pass_id，日志按它串起同一流程的所有条目。
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDKey{}, passID)
}

func PassIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, passIDKey{})
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFrom 优先取显式设置的 trace_id，其次取 OpenTelemetry span 上下文。
func TraceIDFrom(ctx context.Context) (string, bool) {
	if s, ok := stringFrom(ctx, traceIDKey{}); ok {
		return s, true
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String(), true
	}
	return "", false
}

// SpanIDFrom 只来自 OpenTelemetry span 上下文。
func SpanIDFrom(ctx context.Context) (string, bool) {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasSpanID() {
		return sc.SpanID().String(), true
	}
	return "", false
}

// NewPassID 生成随机 pass_id。
func NewPassID() string {
	return uuid.NewString()
}

func stringFrom(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(key).(string)
	return s, ok && s != ""
}
