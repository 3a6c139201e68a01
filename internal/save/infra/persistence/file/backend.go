// Package file 把存档对象保存为 <root>/<slot>/<name> 文件。
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"SaveKeeper/internal/save/port"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640
	// 写入中的临时文件以点开头，List 会忽略它们。
	tempPrefix = "."
)

type Backend struct {
	root string
}

var _ port.Backend = (*Backend)(nil)

func New(root string) (*Backend, error) {
	if root == "" {
		return nil, errors.New("file backend root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	return &Backend{root: abs}, nil
}

// Root 返回绝对根目录。
func (b *Backend) Root() string {
	return b.root
}

func (b *Backend) Read(ctx context.Context, slot, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := b.path(slot, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, port.ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write 先写同目录临时文件并 Sync，再 Rename 到目标；失败时目标文件保持原样。
func (b *Backend) Write(ctx context.Context, slot, name string, data []byte) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	path, err := b.path(slot, name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create slot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, filePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, slot, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.path(slot, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (b *Backend) List(ctx context.Context, slot string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := b.slotDir(slot)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (b *Backend) Slots(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), tempPrefix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *Backend) RemoveSlot(ctx context.Context, slot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := b.slotDir(slot)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func (b *Backend) Close() error {
	return nil
}

func (b *Backend) path(slot, name string) (string, error) {
	dir, err := b.slotDir(slot)
	if err != nil {
		return "", err
	}
	if err := checkSegment(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (b *Backend) slotDir(slot string) (string, error) {
	if err := checkSegment(slot); err != nil {
		return "", err
	}
	return filepath.Join(b.root, slot), nil
}

// checkSegment 拒绝会逃出根目录的名字；更严格的命名规则由 partition 负责。
func checkSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("invalid path segment %q", s)
	}
	return nil
}
