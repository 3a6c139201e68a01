package saveerr

type Reason struct {
	Code    string
	Message string
}

func (r Reason) ReasonCode() string {
	return r.Code
}

func NewReason(c, m string) Reason {
	return Reason{Code: c, Message: m}
}

var (
	// 配置类 reason：在任何 I/O 之前拒绝。
	ReasonSlotInvalid      = NewReason("SLOT_INVALID", "存档槽名称非法")
	ReasonBucketInvalid    = NewReason("BUCKET_INVALID", "bucket 名称非法")
	ReasonBucketReserved   = NewReason("BUCKET_RESERVED", "bucket 名称与清单文件冲突")
	ReasonLayoutInvalid    = NewReason("LAYOUT_INVALID", "存档布局配置非法")
	ReasonParticipantID    = NewReason("PARTICIPANT_ID_INVALID", "参与者标识为空")
	ReasonParticipantDup   = NewReason("PARTICIPANT_DUPLICATED", "同一 bucket 内参与者标识重复")
	ReasonBackendMissing   = NewReason("BACKEND_MISSING", "未配置存储后端")
	ReasonBackendUnknown   = NewReason("BACKEND_UNKNOWN", "未知的存储后端")
	ReasonParallelismRange = NewReason("PARALLELISM_RANGE", "并发度必须为正数")
)

var (
	// 技术类 reason：用于日志与排障。
	ReasonManifestRead     = NewReason("MANIFEST_READ_FAIL", "清单读取失败")
	ReasonManifestWrite    = NewReason("MANIFEST_WRITE_FAIL", "清单写入失败")
	ReasonManifestCorrupt  = NewReason("MANIFEST_CORRUPT", "清单内容无法解析")
	ReasonBucketRead       = NewReason("BUCKET_READ_FAIL", "bucket 文件读取失败")
	ReasonBucketWrite      = NewReason("BUCKET_WRITE_FAIL", "bucket 文件写入失败")
	ReasonBucketCorrupt    = NewReason("BUCKET_CORRUPT", "bucket 文件内容无法解析")
	ReasonBucketRemove     = NewReason("BUCKET_REMOVE_FAIL", "bucket 文件删除失败")
	ReasonEntryEncode      = NewReason("ENTRY_ENCODE_FAIL", "条目编码失败")
	ReasonParticipantSave  = NewReason("PARTICIPANT_SAVE_FAIL", "参与者导出状态失败")
	ReasonParticipantLoad  = NewReason("PARTICIPANT_LOAD_FAIL", "参与者恢复状态失败")
	ReasonContainerCorrupt = NewReason("CONTAINER_CORRUPT", "参与者容器无法解析")
	ReasonSlotList         = NewReason("SLOT_LIST_FAIL", "存档槽列举失败")
	ReasonSlotDelete       = NewReason("SLOT_DELETE_FAIL", "存档槽删除失败")
)
