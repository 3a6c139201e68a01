package partition

import (
	"context"
	"errors"

	"SaveKeeper/internal/save/codec"
	"SaveKeeper/internal/save/port"
	"SaveKeeper/internal/save/saveerr"
)

// Object 描述 slot 内的一个存档对象。
type Object struct {
	Name        string      `json:"name"`
	Bucket      string      `json:"bucket,omitempty"`
	Persistency string      `json:"persistency"`
	Manifest    bool        `json:"manifest,omitempty"`
	persistency Persistency
}

// Layer 返回对象所在持久层。
func (o Object) Layer() Persistency {
	return o.persistency
}

// Archive 在 Layout 约定下按 slot 读写 bucket 文档与清单。
//
// 所有方法先校验名字再访问后端；非法名字返回配置错误，不产生任何 I/O。
type Archive struct {
	backend port.Backend
	layout  Layout
}

func NewArchive(backend port.Backend, layout Layout) (*Archive, error) {
	if backend == nil {
		return nil, saveerr.Config(saveerr.ReasonBackendMissing, "backend is nil")
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Archive{backend: backend, layout: layout}, nil
}

func (a *Archive) Layout() Layout {
	return a.layout
}

func (a *Archive) Backend() port.Backend {
	return a.backend
}

// ReadManifest 读取清单；不存在时返回 (空清单, false, nil)。
func (a *Archive) ReadManifest(ctx context.Context, slot string, p Persistency) (*Manifest, bool, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, false, err
	}
	name := a.layout.ManifestFile(p)
	data, err := a.backend.Read(ctx, slot, name)
	if port.IsNotExist(err) {
		return NewManifest(), false, nil
	}
	if err != nil {
		return nil, false, ioErr(saveerr.ReasonManifestRead, err, slot, name)
	}
	m := NewManifest()
	if err := codec.Unmarshal(data, m); err != nil {
		return nil, true, saveerr.Format(saveerr.ReasonManifestCorrupt, err).
			WithData("slot", slot).WithData("object", name)
	}
	return m, true, nil
}

func (a *Archive) WriteManifest(ctx context.Context, slot string, p Persistency, m *Manifest) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	name := a.layout.ManifestFile(p)
	data, err := codec.Marshal(m)
	if err != nil {
		return err
	}
	if err := a.backend.Write(ctx, slot, name, data); err != nil {
		return ioErr(saveerr.ReasonManifestWrite, err, slot, name)
	}
	return nil
}

func (a *Archive) RemoveManifest(ctx context.Context, slot string, p Persistency) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	name := a.layout.ManifestFile(p)
	if err := a.backend.Remove(ctx, slot, name); err != nil {
		return ioErr(saveerr.ReasonBucketRemove, err, slot, name)
	}
	return nil
}

// ReadDocument 读取 bucket 文档；不存在时返回 (nil, false, nil)，内容损坏返回格式错误。
func (a *Archive) ReadDocument(ctx context.Context, slot, bucket string, p Persistency) (*Document, bool, error) {
	data, err := a.ReadRaw(ctx, slot, bucket, p)
	if port.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	d, err := DecodeDocument(data)
	if err != nil {
		return nil, true, saveerr.Format(saveerr.ReasonBucketCorrupt, err).
			WithData("slot", slot).WithData("bucket", bucket)
	}
	return d, true, nil
}

// ReadRaw 返回 bucket 对象的原始字节；不存在时返回 port.ErrNotExist。
func (a *Archive) ReadRaw(ctx context.Context, slot, bucket string, p Persistency) ([]byte, error) {
	name, err := a.objectName(slot, bucket, p)
	if err != nil {
		return nil, err
	}
	data, err := a.backend.Read(ctx, slot, name)
	if port.IsNotExist(err) {
		return nil, err
	}
	if err != nil {
		return nil, ioErr(saveerr.ReasonBucketRead, err, slot, name).WithData("bucket", bucket)
	}
	return data, nil
}

func (a *Archive) WriteDocument(ctx context.Context, slot, bucket string, p Persistency, d *Document) error {
	name, err := a.objectName(slot, bucket, p)
	if err != nil {
		return err
	}
	data, err := d.Encode()
	if err != nil {
		return err
	}
	if err := a.backend.Write(ctx, slot, name, data); err != nil {
		return ioErr(saveerr.ReasonBucketWrite, err, slot, name).WithData("bucket", bucket)
	}
	return nil
}

func (a *Archive) RemoveDocument(ctx context.Context, slot, bucket string, p Persistency) error {
	name, err := a.objectName(slot, bucket, p)
	if err != nil {
		return err
	}
	if err := a.backend.Remove(ctx, slot, name); err != nil {
		return ioErr(saveerr.ReasonBucketRemove, err, slot, name).WithData("bucket", bucket)
	}
	return nil
}

// Objects 列出 slot 内所有可识别的对象（bucket 文档与清单），未知文件被忽略。
func (a *Archive) Objects(ctx context.Context, slot string) ([]Object, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}
	names, err := a.backend.List(ctx, slot)
	if err != nil {
		return nil, ioErr(saveerr.ReasonSlotList, err, slot, "")
	}
	out := make([]Object, 0, len(names))
	for _, name := range names {
		if bucket, p, ok := a.layout.Parse(name); ok {
			out = append(out, Object{Name: name, Bucket: bucket, Persistency: p.String(), persistency: p})
			continue
		}
		for _, p := range []Persistency{Permanent, Temporary} {
			if name == a.layout.ManifestFile(p) {
				out = append(out, Object{Name: name, Persistency: p.String(), Manifest: true, persistency: p})
			}
		}
	}
	return out, nil
}

func (a *Archive) Slots(ctx context.Context) ([]string, error) {
	slots, err := a.backend.Slots(ctx)
	if err != nil {
		return nil, ioErr(saveerr.ReasonSlotList, err, "", "")
	}
	return slots, nil
}

func (a *Archive) DeleteSlot(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	if err := a.backend.RemoveSlot(ctx, slot); err != nil {
		return ioErr(saveerr.ReasonSlotDelete, err, slot, "")
	}
	return nil
}

func (a *Archive) objectName(slot, bucket string, p Persistency) (string, error) {
	if err := ValidateSlot(slot); err != nil {
		return "", err
	}
	if err := a.layout.ValidateBucket(bucket); err != nil {
		return "", err
	}
	return a.layout.FileName(bucket, p), nil
}

// ioErr 包装后端错误；context 取消单独归类，调用方据此区分中断与故障。
func ioErr(reason saveerr.Reason, cause error, slot, object string) *saveerr.Error {
	var e *saveerr.Error
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		e = saveerr.ErrCanceled.WithReason(reason).WithCause(cause)
	} else {
		e = saveerr.IO(reason, cause)
	}
	if slot != "" {
		e = e.WithData("slot", slot)
	}
	if object != "" {
		e = e.WithData("object", object)
	}
	return e
}
