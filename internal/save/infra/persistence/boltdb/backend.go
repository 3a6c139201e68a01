// Package boltdb 把所有 slot 存进单个 bbolt 文件，每个 slot 一个 bolt bucket。
package boltdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"SaveKeeper/internal/save/port"
)

type Backend struct {
	db *bolt.DB
}

var _ port.Backend = (*Backend)(nil)

// Open 打开（必要时创建）数据库文件；timeout 是获取文件锁的等待时间。
func Open(path string, timeout time.Duration) (*Backend, error) {
	if path == "" {
		return nil, errors.New("bolt path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt %q: %w", path, err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Read(ctx context.Context, slot, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(slot))
		if bkt == nil {
			return fmt.Errorf("%s/%s: %w", slot, name, port.ErrNotExist)
		}
		v := bkt.Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%s/%s: %w", slot, name, port.ErrNotExist)
		}
		// v 只在事务内有效。
		out = append([]byte{}, v...)
		return nil
	})
	return out, err
}

// Write 在单个 Update 事务内完成，天然原子。
func (b *Backend) Write(ctx context.Context, slot, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(slot))
		if err != nil {
			return err
		}
		return bkt.Put([]byte(name), data)
	})
}

func (b *Backend) Remove(ctx context.Context, slot, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(slot))
		if bkt == nil {
			return nil
		}
		if err := bkt.Delete([]byte(name)); err != nil {
			return err
		}
		// 空 slot 不保留，和文件后端的 Slots 语义对齐。
		if k, _ := bkt.Cursor().First(); k == nil {
			return tx.DeleteBucket([]byte(slot))
		}
		return nil
	})
}

func (b *Backend) List(ctx context.Context, slot string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []string{}
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(slot))
		if bkt == nil {
			return nil
		}
		// bolt 按字节序遍历 key，结果已排序。
		return bkt.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}

func (b *Backend) Slots(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []string{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			out = append(out, string(name))
			return nil
		})
	})
	return out, err
}

func (b *Backend) RemoveSlot(ctx context.Context, slot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(slot))
		if errors.Is(err, berrors.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func (b *Backend) Close() error {
	return b.db.Close()
}
