// Package saveerr 是存档域对 errx 的薄封装：统一错误码、哨兵错误和 reason 枚举。
package saveerr

import (
	"errors"

	"SaveKeeper/modules/kit/errx"
)

// Code 复用 kit 错误码。
type Code = errx.Code

// Error 复用通用错误模型。
type Error = errx.Error

const (
	CodeIO           = errx.CodeIO
	CodeFormat       = errx.CodeFormat
	CodeTypeMismatch = errx.CodeTypeMismatch
	CodeConfig       = errx.CodeConfig
	CodeParticipant  = errx.CodeParticipant
	CodeCanceled     = errx.CodeCanceled
)

var (
	ErrIO           = errx.ErrIO
	ErrFormat       = errx.ErrFormat
	ErrTypeMismatch = errx.ErrTypeMismatch
	ErrConfig       = errx.ErrConfig
	ErrParticipant  = errx.ErrParticipant
	ErrCanceled     = errx.ErrCanceled
)

// Config 创建配置错误并挂 reason。
func Config(reason Reason, msg string) *Error {
	return errx.ErrConfig.WithReason(reason).WithMsg(msg)
}

// IO 创建 I/O 错误（系统类，首次挂 cause 时捕获栈）。
func IO(reason Reason, cause error) *Error {
	return errx.ErrIO.WithReason(reason).WithCause(cause)
}

// Format 创建格式错误。
func Format(reason Reason, cause error) *Error {
	return errx.ErrFormat.WithReason(reason).WithCause(cause)
}

// Is 判断错误链中是否含有指定错误码。
func Is(err error, code Code) bool {
	return errx.HasCode(err, code)
}

// AsError 是 errors.As 的类型化快捷方式。
func AsError(err error, target **Error) bool {
	return errors.As(err, target)
}

// IsSystem 报告错误是否应按技术类错误处理（对外只给笼统描述）。
func IsSystem(err error) bool {
	return errx.IsSystem(err)
}
