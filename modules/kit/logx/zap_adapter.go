package logx

import (
	"context"

	"go.uber.org/zap"

	"SaveKeeper/modules/kit/tracex"
)

// ZapLogger 把 zap 适配成 Logger；零值与 nil 都可用（丢弃日志）。
type ZapLogger struct {
	logger *zap.Logger
}

func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: l}
}

// WithContext 附加 ctx 中的 pass_id/trace_id/span_id。
func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	l := z.Zap()
	if ctx == nil {
		return &ZapLogger{logger: l}
	}
	fields := make([]zap.Field, 0, 3)
	for _, id := range []struct {
		key string
		get func(context.Context) (string, bool)
	}{
		{"pass_id", tracex.PassIDFrom},
		{"trace_id", tracex.TraceIDFrom},
		{"span_id", tracex.SpanIDFrom},
	} {
		if v, ok := id.get(ctx); ok {
			fields = append(fields, zap.String(id.key, v))
		}
	}
	if len(fields) > 0 {
		l = l.With(fields...)
	}
	return &ZapLogger{logger: l}
}

// Zap 暴露底层 *zap.Logger，供 gorm 日志桥等需要原生 API 的地方使用。
func (z *ZapLogger) Zap() *zap.Logger {
	if z == nil || z.logger == nil {
		return zap.NewNop()
	}
	return z.logger
}

func (z *ZapLogger) Info(msg string, fields ...zap.Field)  { z.Zap().Info(msg, fields...) }
func (z *ZapLogger) Error(msg string, fields ...zap.Field) { z.Zap().Error(msg, fields...) }
func (z *ZapLogger) Debug(msg string, fields ...zap.Field) { z.Zap().Debug(msg, fields...) }
func (z *ZapLogger) Warn(msg string, fields ...zap.Field)  { z.Zap().Warn(msg, fields...) }
