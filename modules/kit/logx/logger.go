package logx

import (
	"context"

	"go.uber.org/zap"
)

// Logger 是存档系统各包依赖的最小日志接口。
// 库代码只依赖它，不碰全局 logger；WithContext 负责把 pass_id/trace_id 带进字段。
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	WithContext(ctx context.Context) Logger
}

// Nop 返回丢弃所有日志的 Logger。
func Nop() Logger {
	return &ZapLogger{}
}
