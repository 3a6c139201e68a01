package transport

import "SaveKeeper/modules/kit/errx"

// BizCode 表示业务码的强类型封装，用于在日志上下文中减少误传风险。
type BizCode int

// 管理接口响应体里的 code。
const (
	OK           = 0
	InvalidParam = 1001
	NotFound     = 1002
	ConfigError  = 1003
	FormatError  = 1004
	TypeMismatch = 1005
	Participant  = 1006
	Canceled     = 1007
	IOFailure    = 1101
	SystemError  = 1999
)

// CodeForError 把错误码映射成响应业务码。
func CodeForError(err error) int {
	if err == nil {
		return OK
	}
	switch errx.CodeOf(err) {
	case errx.CodeConfig:
		return ConfigError
	case errx.CodeFormat:
		return FormatError
	case errx.CodeTypeMismatch:
		return TypeMismatch
	case errx.CodeParticipant:
		return Participant
	case errx.CodeCanceled:
		return Canceled
	case errx.CodeIO:
		return IOFailure
	default:
		return SystemError
	}
}
