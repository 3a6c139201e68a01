// Package memory 是进程内的存档后端，用于测试与临时运行。
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"SaveKeeper/internal/save/port"
)

type Backend struct {
	mu    sync.RWMutex
	slots map[string]map[string][]byte
}

var _ port.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{slots: make(map[string]map[string][]byte)}
}

func (b *Backend) Read(ctx context.Context, slot, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.slots[slot][name]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", slot, name, port.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

func (b *Backend) Write(ctx context.Context, slot, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	objects, ok := b.slots[slot]
	if !ok {
		objects = make(map[string][]byte)
		b.slots[slot] = objects
	}
	objects[name] = append([]byte(nil), data...)
	return nil
}

func (b *Backend) Remove(ctx context.Context, slot, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if objects, ok := b.slots[slot]; ok {
		delete(objects, name)
		if len(objects) == 0 {
			delete(b.slots, slot)
		}
	}
	return nil
}

func (b *Backend) List(ctx context.Context, slot string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedNames(b.slots[slot]), nil
}

func (b *Backend) Slots(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedNames(b.slots), nil
}

func (b *Backend) RemoveSlot(ctx context.Context, slot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.slots, slot)
	return nil
}

func (b *Backend) Close() error {
	return nil
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
