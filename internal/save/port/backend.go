// Package port 定义存档对象的存储端口，具体实现位于 infra/persistence。
package port

import (
	"context"
	"errors"
)

// ErrNotExist 表示对象不存在；Archive 把它当作空处理，不算 I/O 失败。
var ErrNotExist = errors.New("save object does not exist")

// Backend 以 (slot, name) 寻址不透明字节对象。
//
//   - Write 必须原子：读者要么看到旧内容，要么看到完整的新内容；
//   - Remove 删除不存在的对象不报错；
//   - List/Slots 返回排序后的名字。
type Backend interface {
	Read(ctx context.Context, slot, name string) ([]byte, error)
	Write(ctx context.Context, slot, name string, data []byte) error
	Remove(ctx context.Context, slot, name string) error
	List(ctx context.Context, slot string) ([]string, error)
	Slots(ctx context.Context) ([]string, error)
	RemoveSlot(ctx context.Context, slot string) error
	Close() error
}

// IsNotExist 报告错误链中是否含 ErrNotExist。
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}
