package logx

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// semanticError 是 errx.Error 暴露给日志的语义；logx 不直接依赖 errx。
type semanticError interface {
	error
	CodeText() string
	Msg() string
	Reason() string
	Data() map[string]any
}

type stackProvider interface {
	Stack() []uintptr
}

const (
	maxCauseDepth = 20
	maxFrames     = 32
)

// ErrorLog 是一条错误日志的可读结构。
type ErrorLog struct {
	Error      string
	Code       string
	Msg        string
	Reason     string
	Data       map[string]any
	CauseChain []string
	Origin     string
	Stack      string
}

// BuildErrorLog 提取错误码、上下文、cause 链与发生处栈。
// errors.Join 的聚合错误取第一个带错误码的成员作为语义来源，cause 链展开全部成员。
func BuildErrorLog(err error) ErrorLog {
	if err == nil {
		return ErrorLog{}
	}
	out := ErrorLog{Error: err.Error(), CauseChain: causeChain(err)}

	var se semanticError
	if errors.As(err, &se) {
		out.Code, out.Msg, out.Reason, out.Data = se.CodeText(), se.Msg(), se.Reason(), se.Data()
	}
	// 栈取链上第一个真正带栈的错误，业务错误外层包着系统错误时也能拿到。
	walk(err, func(e error) bool {
		sp, ok := e.(stackProvider)
		if !ok {
			return true
		}
		if pcs := sp.Stack(); len(pcs) > 0 {
			out.Origin, out.Stack = formatStack(pcs)
			return false
		}
		return true
	})
	return out
}

// Fields 把错误日志转成 zap 字段，空值省略。
func (l ErrorLog) Fields() []zap.Field {
	var fs []zap.Field
	if l.Code != "" {
		fs = append(fs, zap.String("error_code", l.Code))
	}
	if l.Reason != "" {
		fs = append(fs, zap.String("reason", l.Reason))
	}
	if len(l.Data) != 0 {
		fs = append(fs, zap.Any("error_data", l.Data))
	}
	if len(l.CauseChain) != 0 {
		fs = append(fs, zap.Strings("cause_chain", l.CauseChain))
	}
	if l.Origin != "" {
		fs = append(fs, zap.String("origin_caller", l.Origin))
	}
	if l.Stack != "" {
		fs = append(fs, zap.String("stack_origin", l.Stack))
	}
	return fs
}

func causeChain(err error) []string {
	var out []string
	first := true
	walk(err, func(e error) bool {
		if first {
			first = false
			return true
		}
		out = append(out, fmt.Sprintf("%T: %v", e, e))
		return len(out) < maxCauseDepth
	})
	return out
}

// walk 按广度优先访问 err 及其全部 cause（含 Join 成员），fn 返回 false 时停止。
func walk(err error, fn func(error) bool) {
	queue := []error{err}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == nil {
			continue
		}
		if !fn(cur) {
			return
		}
		switch u := cur.(type) {
		case interface{ Unwrap() []error }:
			queue = append(queue, u.Unwrap()...)
		case interface{ Unwrap() error }:
			queue = append(queue, u.Unwrap())
		}
	}
}

func formatStack(pcs []uintptr) (origin string, stack string) {
	frames := runtime.CallersFrames(pcs)
	var b strings.Builder
	for i := 0; i < maxFrames; i++ {
		f, more := frames.Next()
		if f.Function == "" && f.File == "" {
			break
		}
		loc := f.File + ":" + strconv.Itoa(f.Line)
		if origin == "" {
			origin = f.Function + " " + loc
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Function)
		b.WriteByte(' ')
		b.WriteString(loc)
		if !more {
			break
		}
	}
	return origin, b.String()
}
