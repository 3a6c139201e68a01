package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"SaveKeeper/modules/kit/logx"
	"SaveKeeper/modules/kit/tracex"
)

// AccessLog 是一次管理请求的日志上下文，handler 通过 SetBizCode/SetSlot 补充内容。
type AccessLog struct {
	Action      string
	Slot        string
	BizCode     BizCode
	ErrorReason string
	bizSet      bool
	start       time.Time
}

type accessLogKey struct{}

// WithAccessLog 在 parent 上挂一条新的 AccessLog；没有 trace_id 时生成一个。
func WithAccessLog(parent context.Context, action string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	if action == "" {
		action = "unknown"
	}
	ctx := parent
	if _, ok := tracex.TraceIDFrom(ctx); !ok {
		ctx = tracex.WithTraceID(ctx, tracex.NewPassID())
	}
	return context.WithValue(ctx, accessLogKey{}, &AccessLog{Action: action, start: time.Now()})
}

// FromContext 从 context 读取 AccessLog。
func FromContext(ctx context.Context) *AccessLog {
	if ctx == nil {
		return nil
	}
	al, _ := ctx.Value(accessLogKey{}).(*AccessLog)
	return al
}

// SetBizCode 记录响应业务码。
func SetBizCode(ctx context.Context, code BizCode) {
	if al := FromContext(ctx); al != nil {
		al.BizCode, al.bizSet = code, true
	}
}

// SetErrorReason 记录失败原因（reason code）。
func SetErrorReason(ctx context.Context, reason string) {
	if al := FromContext(ctx); al != nil && reason != "" {
		al.ErrorReason = reason
	}
}

// SetSlot 记录请求操作的存档槽。
func SetSlot(ctx context.Context, slot string) {
	if al := FromContext(ctx); al != nil {
		al.Slot = slot
	}
}

// Finish 写访问日志；handler 没有设置业务码时按 HTTP 状态推断。
func Finish(ctx context.Context, log logx.Logger, status int) {
	al := FromContext(ctx)
	if al == nil || log == nil {
		return
	}
	if !al.bizSet {
		al.BizCode = BizCode(OK)
		if status >= 400 {
			al.BizCode = BizCode(SystemError)
		}
	}

	fields := []zap.Field{
		zap.Duration("latency", time.Since(al.start)),
		zap.Int("biz_code", int(al.BizCode)),
	}
	if al.Slot != "" {
		fields = append(fields, zap.String("slot", al.Slot))
	}
	if al.BizCode == BizCode(OK) {
		fields = append(fields, zap.String("result", "success"))
	} else {
		fields = append(fields, zap.String("result", "failure"))
		if al.ErrorReason != "" {
			fields = append(fields, zap.String("error_reason", al.ErrorReason))
		}
	}
	logx.ReportAccessWithLoggerContext(ctx, log, al.Action, status, fields...)
}
