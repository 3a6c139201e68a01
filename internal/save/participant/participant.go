// Package participant 维护参与存档/读档的活对象及其数据容器。
package participant

import (
	"strconv"

	"github.com/google/uuid"

	"SaveKeeper/internal/save/store"
)

// Participant 是由业务代码提供的可存档对象。
//
// ID 必须跨存档/读档稳定，否则读档时找不到它的容器。
type Participant interface {
	ID() string
	Scope() Scope
	// Save 把自身状态写入一个空容器；没写的 key 不会出现在存档里。返回错误时该参与者的旧数据保持不变。
	Save(c *Container) error
	// Load 从容器恢复状态；只在读到该参与者的数据时调用。
	Load(c *Container) error
}

type scopeKind uint8

const (
	scopeGlobal scopeKind = iota
	scopeScene
	scopeBucket
)

// Scope 决定参与者的数据落在哪个 bucket。
type Scope struct {
	kind   scopeKind
	bucket string
}

// Global 落在默认 bucket。
func Global() Scope {
	return Scope{kind: scopeGlobal, bucket: store.DefaultBucket}
}

// Scene 落在场景 bucket "scene_<id>"。
func Scene(id int) Scope {
	return Scope{kind: scopeScene, bucket: "scene_" + strconv.Itoa(id)}
}

// Bucket 落在显式命名的 bucket；空名等同 Global。
func Bucket(name string) Scope {
	if name == "" {
		return Global()
	}
	return Scope{kind: scopeBucket, bucket: name}
}

// Bucket 返回 bucket 名。零值 Scope 视为 Global。
func (s Scope) Bucket() string {
	return store.BucketName(s.bucket)
}

func (s Scope) String() string {
	switch s.kind {
	case scopeScene:
		return "scene:" + s.bucket
	case scopeBucket:
		return "bucket:" + s.bucket
	default:
		return "global"
	}
}

// NewID 生成构造时分配的稳定标识；调用方负责把它持久化到自己的配置里。
func NewID() string {
	return uuid.NewString()
}

// Base 可嵌入到参与者实现中，提供 ID 与 Scope。
type Base struct {
	id    string
	scope Scope
}

func NewBase(id string, scope Scope) Base {
	return Base{id: id, scope: scope}
}

func (b Base) ID() string {
	return b.id
}

func (b Base) Scope() Scope {
	return b.scope
}
