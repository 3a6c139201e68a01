package errx

import (
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"
)

// Code 表示错误码（对外语义的稳定标识）。
type Code string

// Reason 是错误原因的最小接口，只暴露 reason code。
type Reason interface {
	ReasonCode() string
}

// contextKeys 是会拼进 Error() 文本的定位字段，按这个顺序输出。
var contextKeys = []string{"slot", "bucket", "key", "participant_id", "object"}

// Error 是存档系统统一的错误模型：
//   - code/msg：对外语义
//   - data：定位上下文（slot/bucket/key 等），派生时复制
//   - cause：原始错误链
//   - stack：系统类错误第一次挂 cause 时捕获，链上已有栈则不再捕获
type Error struct {
	code   Code
	msg    string
	data   map[string]any
	cause  error
	stack  []uintptr
	system bool
}

// NewBiz 创建调用方可预期的错误（类型不匹配、配置冲突等），不捕获栈。
func NewBiz(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// NewSys 创建技术类错误（I/O 等），挂 cause 时捕获栈。
func NewSys(code Code, msg string) *Error {
	return &Error{code: code, msg: msg, system: true}
}

// Error 输出 `CODE: msg [slot=.. bucket=..]: cause`，缺省部分省略。
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.code))
	if e.msg != "" {
		b.WriteString(": ")
		b.WriteString(e.msg)
	}
	if loc := e.location(); loc != "" {
		b.WriteString(" [")
		b.WriteString(loc)
		b.WriteString("]")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) location() string {
	var parts []string
	for _, k := range contextKeys {
		if v, ok := e.data[k]; ok && v != "" {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 仅按错误码判断语义是否相同，忽略 msg/data/cause。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

func (e *Error) Code() Code {
	if e == nil {
		return ""
	}
	return e.code
}

func (e *Error) CodeText() string {
	return string(e.Code())
}

func (e *Error) Msg() string {
	if e == nil {
		return ""
	}
	return e.msg
}

// System 报告是否为技术类错误。
func (e *Error) System() bool {
	return e != nil && e.system
}

// Data 返回 data 的拷贝。
func (e *Error) Data() map[string]any {
	if e == nil {
		return nil
	}
	return maps.Clone(e.data)
}

// Reason 返回 data.reason。
func (e *Error) Reason() string {
	if e == nil {
		return ""
	}
	s, _ := e.data["reason"].(string)
	return s
}

// Stack 返回错误最早被转换那一刻的调用栈。
func (e *Error) Stack() []uintptr {
	if e == nil {
		return nil
	}
	return slices.Clone(e.stack)
}

func (e *Error) WithData(key string, value any) *Error {
	return e.WithDataMap(map[string]any{key: value})
}

// WithReason 是 WithData("reason", reason.ReasonCode()) 的快捷方法。
func (e *Error) WithReason(reason Reason) *Error {
	code := ""
	if reason != nil {
		code = reason.ReasonCode()
	}
	return e.WithData("reason", code)
}

func (e *Error) WithDataMap(data map[string]any) *Error {
	next := e.derive()
	if len(data) == 0 {
		return next
	}
	if next.data == nil {
		next.data = make(map[string]any, len(data))
	}
	maps.Copy(next.data, data)
	return next
}

// WithMsg 替换对外描述，保留 code/data/cause。
func (e *Error) WithMsg(msg string) *Error {
	next := e.derive()
	next.msg = msg
	return next
}

func (e *Error) WithCause(cause error) *Error {
	next := e.derive()
	next.cause = cause
	if next.system && cause != nil && len(next.stack) == 0 && !hasStack(cause) {
		next.stack = captureStack(3)
	}
	return next
}

func (e *Error) derive() *Error {
	next := *e
	next.data = maps.Clone(e.data)
	next.stack = slices.Clone(e.stack)
	return &next
}

// CodeOf 沿错误链返回第一个 *Error 的错误码；没有则返回空。
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

// HasCode 报告错误链（含 errors.Join 的成员）中是否存在指定错误码。
func HasCode(err error, code Code) bool {
	return errors.Is(err, &Error{code: code})
}

// IsSystem 报告错误链中第一个 *Error 是否为技术类错误；非 *Error 视为技术类。
func IsSystem(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.system
	}
	return err != nil
}

func captureStack(skip int) []uintptr {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip, pcs)
	if n <= 0 {
		return nil
	}
	return pcs[:n]
}

// hasStack 深度优先检查链上（含 Join 成员）是否已有栈。
func hasStack(err error) bool {
	const maxDepth = 32
	stack := []error{err}
	for seen := 0; len(stack) > 0 && seen < maxDepth; seen++ {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == nil {
			continue
		}
		if sp, ok := cur.(interface{ Stack() []uintptr }); ok && len(sp.Stack()) != 0 {
			return true
		}
		switch u := cur.(type) {
		case interface{ Unwrap() []error }:
			stack = append(stack, u.Unwrap()...)
		case interface{ Unwrap() error }:
			stack = append(stack, u.Unwrap())
		}
	}
	return false
}
