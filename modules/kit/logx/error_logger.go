package logx

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// BizLog 是可预期拒绝（配置冲突、类型不匹配）日志的强类型输入。
type BizLog struct {
	Action  string
	Reason  string
	Message string
}

// SysLog 是技术错误日志的强类型输入。
type SysLog struct {
	Action string
	Err    error
}

// PassLog 描述一次存档/读档流程的结果。
type PassLog struct {
	Action   string
	Slot     string
	Buckets  int
	Skipped  int
	Failures int
	Elapsed  time.Duration
}

func NewBizLog(action, reason, message string) BizLog {
	return BizLog{Action: action, Reason: reason, Message: message}
}

func NewSysLog(action string, err error) SysLog {
	return SysLog{Action: action, Err: err}
}

// ReportPassWithLoggerContext 记录流程汇总日志：
// - 无失败: INFO
// - 有跳过但无失败: INFO（缺失文件按空处理）
// - 有失败: WARN（单个 bucket 失败不终止整个流程，由调用方决定是否升级）
func ReportPassWithLoggerContext(ctx context.Context, l Logger, pass PassLog, fields ...zap.Field) {
	if l == nil {
		return
	}
	base := []zap.Field{
		zap.String("log_type", "pass"),
		zap.String("action", pass.Action),
		zap.String("slot", pass.Slot),
		zap.Int("buckets", pass.Buckets),
		zap.Int("skipped", pass.Skipped),
		zap.Int("failures", pass.Failures),
		zap.Duration("elapsed", pass.Elapsed),
	}
	base = append(base, fields...)
	withCtx := l.WithContext(ctx)
	if pass.Failures > 0 {
		withCtx.Warn(pass.Action+" finished with failures", base...)
		return
	}
	withCtx.Info(pass.Action+" finished", base...)
}

// ReportAccessWithLoggerContext 记录 HTTP 访问日志：
// - status < 400: INFO
// - 400~499: WARN
// - >= 500: ERROR
func ReportAccessWithLoggerContext(ctx context.Context, l Logger, action string, status int, fields ...zap.Field) {
	if l == nil {
		return
	}
	base := []zap.Field{
		zap.String("log_type", "access"),
		zap.String("action", action),
		zap.Int("status", status),
	}
	base = append(base, fields...)
	withCtx := l.WithContext(ctx)
	switch {
	case status >= 500:
		withCtx.Error("access", base...)
	case status >= 400:
		withCtx.Warn("access", base...)
	default:
		withCtx.Info("access", base...)
	}
}

// ReportBizWithLoggerContext 记录可预期拒绝：INFO、err_type=biz、不带堆栈。
func ReportBizWithLoggerContext(ctx context.Context, l Logger, biz BizLog, fields ...zap.Field) {
	if l == nil {
		return
	}
	action := biz.Action
	if action == "" {
		action = "biz_reject"
	}

	base := []zap.Field{
		zap.String("err_type", "biz"),
		zap.String("action", action),
	}
	if biz.Reason != "" {
		base = append(base, zap.String("reason", biz.Reason))
	}
	if biz.Message != "" {
		base = append(base, zap.String("biz_message", biz.Message))
	}
	base = append(base, fields...)

	msg := action
	switch {
	case biz.Reason != "" && biz.Message != "":
		msg = fmt.Sprintf("%s, reason:%s, msg:%s", action, biz.Reason, biz.Message)
	case biz.Reason != "":
		msg = fmt.Sprintf("%s, reason:%s", action, biz.Reason)
	case biz.Message != "":
		msg = fmt.Sprintf("%s, msg:%s", action, biz.Message)
	}
	l.WithContext(ctx).Info(msg, base...)
}

// ReportSysErrorWithLoggerContext 记录技术错误：ERROR、err_type=sys，附带 code/cause 链/栈。
func ReportSysErrorWithLoggerContext(ctx context.Context, l Logger, sys SysLog, fields ...zap.Field) {
	if sys.Err == nil || l == nil {
		return
	}
	action := sys.Action
	if action == "" {
		action = "sys_error"
	}

	meta := BuildErrorLog(sys.Err)
	base := append([]zap.Field{
		zap.String("err_type", "sys"),
		zap.String("action", action),
	}, meta.Fields()...)
	base = append(base, fields...)

	finalMsg := fmt.Sprintf("%s, error:%s", action, meta.Error)
	if meta.Reason != "" {
		finalMsg = fmt.Sprintf("%s, reason:%s, error:%s", action, meta.Reason, meta.Error)
	}
	l.WithContext(ctx).Error(finalMsg, base...)
}
