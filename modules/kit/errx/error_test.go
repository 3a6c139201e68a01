package errx

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is_只按code比较语义(t *testing.T) {
	e1 := ErrTypeMismatch.WithData("key", "a").WithCause(errors.New("cause1"))
	e2 := ErrTypeMismatch.WithMsg("另一种描述").WithData("key", "b")
	if !errors.Is(e1, e2) {
		t.Fatalf("期望 errors.Is(e1, e2)==true（只按 code 判断语义），e1=%v e2=%v", e1, e2)
	}
	if errors.Is(e1, ErrConfig) {
		t.Fatalf("不同 code 不应判定为同一语义")
	}
}

func TestError_业务错误不捕获栈_但保留cause链(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := ErrFormat.WithCause(cause)
	if got := err.Stack(); got != nil {
		t.Fatalf("期望业务错误不捕获栈，got=%v", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("期望 cause 链不丢，err=%v", err)
	}
}

func TestError_系统错误捕获一次栈_且不重复捕获(t *testing.T) {
	sys := ErrIO.WithCause(errors.New("disk full"))
	if got := sys.Stack(); len(got) == 0 {
		t.Fatalf("期望系统错误捕获栈，got=%v", got)
	}
	sys2 := ErrInternal.WithCause(sys)
	if got := sys2.Stack(); got != nil {
		t.Fatalf("期望上层系统错误不重复捕获栈，got=%v", got)
	}
}

func TestError_Data_防止外部map污染(t *testing.T) {
	m := map[string]any{"bucket": "global"}
	err := ErrConfig.WithDataMap(m)
	m["bucket"] = "mutated"
	if got := err.Data()["bucket"]; got != "global" {
		t.Fatalf("期望构造时复制 data；got=%v", got)
	}
	if ErrConfig.Data() != nil {
		t.Fatalf("哨兵错误不应被派生对象修改")
	}
}

func TestCodeOf_穿透fmt包装(t *testing.T) {
	err := fmt.Errorf("save bucket: %w", ErrIO.WithData("bucket", "settings"))
	if got := CodeOf(err); got != CodeIO {
		t.Fatalf("CodeOf=%q, want %q", got, CodeIO)
	}
	if !HasCode(err, CodeIO) {
		t.Fatalf("HasCode 应识别被包装的错误码")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatalf("普通错误的 CodeOf 应为空")
	}
}

func TestError_文本带定位字段(t *testing.T) {
	err := ErrFormat.WithData("slot", "_Default").WithData("bucket", "global").
		WithData("reason", "BUCKET_CORRUPT").WithCause(errors.New("bad json"))
	want := "FORMAT_ERROR: 存档格式错误 [slot=_Default bucket=global]: bad json"
	if got := err.Error(); got != want {
		t.Fatalf("Error()=%q, want %q", got, want)
	}
	if got := NewBiz(CodeConfig, "").Error(); got != string(CodeConfig) {
		t.Fatalf("只有 code 时输出 code, got=%q", got)
	}
}

func TestError_Join的成员已有栈时不重复捕获(t *testing.T) {
	inner := ErrIO.WithCause(errors.New("disk"))
	outer := ErrInternal.WithCause(errors.Join(errors.New("other"), inner))
	if outer.Stack() != nil {
		t.Fatalf("Join 成员已带栈，外层不应再捕获")
	}
	if !IsSystem(outer) || IsSystem(ErrConfig) || !IsSystem(errors.New("plain")) || IsSystem(nil) {
		t.Fatalf("IsSystem 判断错误")
	}
}
