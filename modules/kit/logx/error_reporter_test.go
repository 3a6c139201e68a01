package logx

import (
	"context"
	"errors"
	"testing"

	"SaveKeeper/modules/kit/errx"
	"SaveKeeper/modules/kit/tracex"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildErrorLog_能提取语义与栈(t *testing.T) {
	cause := errors.New("disk full")
	e := errx.ErrIO.
		WithData("bucket", "settings").
		WithCause(cause)

	meta := BuildErrorLog(e)
	if meta.Error == "" || meta.Code != string(errx.CodeIO) || meta.Msg == "" {
		t.Fatalf("期望 Error/Code/Msg 非空, got=%+v", meta)
	}
	if meta.Data == nil || meta.Data["bucket"] != "settings" {
		t.Fatalf("期望 meta.Data 包含 bucket=settings, got=%v", meta.Data)
	}
	if len(meta.CauseChain) == 0 {
		t.Fatalf("期望 meta.CauseChain 非空")
	}
	if meta.Origin == "" || meta.Stack == "" {
		t.Fatalf("期望系统错误带发生处栈 origin=%q stack=%q", meta.Origin, meta.Stack)
	}
}

func TestReportPass_有失败时记WARN并带pass_id(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))
	ctx := tracex.WithPassID(context.Background(), "p-9")

	ReportPassWithLoggerContext(ctx, l, PassLog{Action: "save", Slot: "_Default", Buckets: 2, Failures: 1})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("期望 1 条日志, got=%d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("有失败的流程应记 WARN, got=%v", entries[0].Level)
	}
	if got := entries[0].ContextMap()["pass_id"]; got != "p-9" {
		t.Fatalf("期望日志携带 pass_id, got=%v", got)
	}
}

func TestReportSysError_nil错误不打印(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))

	ReportSysErrorWithLoggerContext(context.Background(), l, NewSysLog("save", nil))
	ReportSysErrorWithLoggerContext(context.Background(), l, NewSysLog("save", errx.ErrIO.WithCause(errors.New("x"))))

	if logs.Len() != 1 || logs.All()[0].Level != zapcore.ErrorLevel {
		t.Fatalf("期望只记录一条 ERROR, got=%v", logs.All())
	}
}

func TestBuildErrorLog_展开Join的cause链(t *testing.T) {
	a := errx.ErrFormat.WithData("bucket", "settings").WithCause(errors.New("bad json"))
	b := errx.ErrIO.WithCause(errors.New("disk full"))
	meta := BuildErrorLog(errors.Join(a, b))

	if meta.Code != string(errx.CodeFormat) {
		t.Fatalf("期望取第一个成员的错误码, got=%q", meta.Code)
	}
	// a, b, a.cause, b.cause
	if len(meta.CauseChain) != 4 {
		t.Fatalf("期望 cause 链展开全部成员, got=%v", meta.CauseChain)
	}
}
