package errx

// 这里定义存档系统“跨包统一”的错误码。
//
// 约束：
// - NotFound 不是错误，读取缺失的 key 用 (zero, false) 表达，因此这里没有对应错误码
// - 业务域更细的 reason（例如 MANIFEST_CORRUPT）由各包通过 WithReason 挂载，不在 kit 里集中

const (
	// CodeInternal 表示内部不可预期错误（兜底）。
	CodeInternal Code = "INTERNAL_ERROR"
	// CodeIO 表示存储后端读写失败（文件系统/数据库不可用等）。
	CodeIO Code = "IO_FAILURE"
	// CodeFormat 表示存档内容无法按预期结构解析。
	CodeFormat Code = "FORMAT_ERROR"
	// CodeTypeMismatch 表示存储值无法转换成调用方请求的类型。
	CodeTypeMismatch Code = "TYPE_MISMATCH"
	// CodeConfig 表示配置/命名冲突，必须在任何 I/O 之前拒绝。
	CodeConfig Code = "CONFIGURATION_ERROR"
	// CodeParticipant 表示某个存档参与者的 Save/Load 回调失败。
	CodeParticipant Code = "PARTICIPANT_ERROR"
	// CodeCanceled 表示存档流程被 context 取消。
	CodeCanceled Code = "CANCELED"
)

// 统一哨兵错误（允许 WithData/WithCause 派生新对象）。
var (
	ErrInternal     = NewSys(CodeInternal, "内部错误")
	ErrIO           = NewSys(CodeIO, "存储读写失败")
	ErrFormat       = NewBiz(CodeFormat, "存档格式错误")
	ErrTypeMismatch = NewBiz(CodeTypeMismatch, "存档值类型不匹配")
	ErrConfig       = NewBiz(CodeConfig, "存档配置错误")
	ErrParticipant  = NewBiz(CodeParticipant, "存档参与者处理失败")
	ErrCanceled     = NewBiz(CodeCanceled, "存档流程已取消")
)
