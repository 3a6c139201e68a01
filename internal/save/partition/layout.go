// Package partition 负责把 bucket 映射为存档对象：命名规则、清单、文档合并与读写。
package partition

import (
	"fmt"
	"path/filepath"
	"strings"

	"SaveKeeper/internal/save/saveerr"
)

// Persistency 区分正式存档与临时检查点。
type Persistency uint8

const (
	Permanent Persistency = iota
	Temporary
)

func (p Persistency) String() string {
	if p == Temporary {
		return "temporary"
	}
	return "permanent"
}

// Layout 描述对象命名：<bucket>.<ext>，清单为 <ManifestName>.<ext>。
type Layout struct {
	Extension     string
	TempExtension string
	ManifestName  string
}

func DefaultLayout() Layout {
	return Layout{Extension: "json", TempExtension: "temp", ManifestName: "_Locations"}
}

func (l Layout) Validate() error {
	for field, ext := range map[string]string{"extension": l.Extension, "temp_extension": l.TempExtension} {
		if ext == "" || strings.ContainsAny(ext, `./\`) {
			return saveerr.Config(saveerr.ReasonLayoutInvalid, fmt.Sprintf("%s %q is invalid", field, ext)).
				WithData("field", field)
		}
	}
	if strings.EqualFold(l.Extension, l.TempExtension) {
		return saveerr.Config(saveerr.ReasonLayoutInvalid, "extension and temp_extension must differ")
	}
	if err := checkName(l.ManifestName); err != nil {
		return saveerr.Config(saveerr.ReasonLayoutInvalid, "manifest_name: "+err.Error())
	}
	return nil
}

// Ext 返回对应持久层的扩展名。
func (l Layout) Ext(p Persistency) string {
	if p == Temporary {
		return l.TempExtension
	}
	return l.Extension
}

func (l Layout) FileName(bucket string, p Persistency) string {
	return bucket + "." + l.Ext(p)
}

func (l Layout) ManifestFile(p Persistency) string {
	return l.FileName(l.ManifestName, p)
}

// Path 返回文件后端下的完整路径 <root>/<slot>/<bucket>.<ext>。
func (l Layout) Path(root, slot, bucket string, p Persistency) string {
	return filepath.Join(root, slot, l.FileName(bucket, p))
}

// Parse 从对象名还原 bucket 与持久层；清单与未知扩展名返回 ok == false。
func (l Layout) Parse(name string) (bucket string, p Persistency, ok bool) {
	for _, cand := range []Persistency{Permanent, Temporary} {
		suffix := "." + l.Ext(cand)
		if strings.HasSuffix(name, suffix) {
			bucket = strings.TrimSuffix(name, suffix)
			if bucket == "" || strings.EqualFold(bucket, l.ManifestName) {
				return "", cand, false
			}
			return bucket, cand, true
		}
	}
	return "", Permanent, false
}

// ValidateBucket 校验 bucket 名；与清单同名（忽略大小写）会覆盖清单，直接拒绝。
func (l Layout) ValidateBucket(bucket string) error {
	if err := checkName(bucket); err != nil {
		return saveerr.Config(saveerr.ReasonBucketInvalid, err.Error()).WithData("bucket", bucket)
	}
	if strings.EqualFold(bucket, l.ManifestName) {
		return saveerr.Config(saveerr.ReasonBucketReserved,
			fmt.Sprintf("bucket %q collides with manifest %q", bucket, l.ManifestName)).
			WithData("bucket", bucket)
	}
	return nil
}

// ValidateSlot 校验存档槽名。
func ValidateSlot(slot string) error {
	if err := checkName(slot); err != nil {
		return saveerr.Config(saveerr.ReasonSlotInvalid, err.Error()).WithData("slot", slot)
	}
	return nil
}

func checkName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("name %q is reserved", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("name %q must not start with a dot", name)
	case strings.ContainsAny(name, `/\:*?"<>|`):
		return fmt.Errorf("name %q contains a path or reserved character", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("name %q contains a control character", name)
		}
	}
	return nil
}
