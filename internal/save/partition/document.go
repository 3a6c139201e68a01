package partition

import (
	"SaveKeeper/internal/save/codec"
	"SaveKeeper/internal/save/participant"
	"SaveKeeper/internal/save/store"
)

// Document 是单个 bucket 对象的内容。
//
// Removed 只出现在临时层：记录检查点之后删除的 key，提交到正式层时据此剔除。
type Document struct {
	Values       map[string]codec.RawMessage       `json:"values"`
	Participants map[string]*participant.Container `json:"participants"`
	Removed      []string                          `json:"removed,omitempty"`
}

func NewDocument() *Document {
	return &Document{
		Values:       make(map[string]codec.RawMessage),
		Participants: make(map[string]*participant.Container),
	}
}

func (d *Document) Empty() bool {
	return d == nil || (len(d.Values) == 0 && len(d.Participants) == 0 && len(d.Removed) == 0)
}

// Merge 以 overlay 为准合并：新数据覆盖同 key 的旧数据，旧数据补空缺；
// removed 中的 key 从结果中剔除。参与者按整个容器合并。结果不带 Removed。
func Merge(base, overlay *Document, removed []string) *Document {
	out := NewDocument()
	if base != nil {
		for k, v := range base.Values {
			out.Values[k] = v
		}
		for id, c := range base.Participants {
			out.Participants[id] = c
		}
	}
	for _, k := range removed {
		delete(out.Values, k)
	}
	if overlay != nil {
		for k, v := range overlay.Values {
			out.Values[k] = v
		}
		for id, c := range overlay.Participants {
			out.Participants[id] = c
		}
	}
	return out
}

// Encode 输出缩进、key 有序的 JSON；内容不变时字节不变。
func (d *Document) Encode() ([]byte, error) {
	if d.Values == nil {
		d.Values = map[string]codec.RawMessage{}
	}
	if d.Participants == nil {
		d.Participants = map[string]*participant.Container{}
	}
	return codec.Marshal(d)
}

// DecodeDocument 解析 bucket 对象。
func DecodeDocument(data []byte) (*Document, error) {
	d := NewDocument()
	if err := codec.Unmarshal(data, d); err != nil {
		return nil, err
	}
	if d.Values == nil {
		d.Values = make(map[string]codec.RawMessage)
	}
	if d.Participants == nil {
		d.Participants = make(map[string]*participant.Container)
	}
	for id, c := range d.Participants {
		if c == nil {
			delete(d.Participants, id)
		}
	}
	return d, nil
}

// Group 把 store 条目按 bucket 分组。
func Group(entries []store.Entry) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, e := range entries {
		b := store.BucketName(e.Bucket)
		m, ok := out[b]
		if !ok {
			m = make(map[string]any)
			out[b] = m
		}
		m[e.Key] = e.Value
	}
	return out
}

// EncodeValues 用 codec 载体规则编码一个 bucket 的 store 条目；
// 单条失败不影响其它条目，失败的 key 与错误一并返回。
func EncodeValues(entries map[string]any) (map[string]codec.RawMessage, map[string]error) {
	out := make(map[string]codec.RawMessage, len(entries))
	var failed map[string]error
	for k, v := range entries {
		raw, err := codec.Serialize(v)
		if err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[k] = err
			continue
		}
		out[k] = raw
	}
	return out, failed
}

// DecodeValues 把文档中的值还原为通用 token（标量剥掉载体）；无法解析的 key 单独返回。
func DecodeValues(values map[string]codec.RawMessage) (map[string]any, map[string]error) {
	out := make(map[string]any, len(values))
	var failed map[string]error
	for k, raw := range values {
		v, err := codec.Deserialize[any](raw)
		if err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[k] = err
			continue
		}
		out[k] = v
	}
	return out, failed
}
