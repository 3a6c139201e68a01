package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"SaveKeeper/internal/save/infra/persistence/memory"
	"SaveKeeper/internal/save/participant"
	"SaveKeeper/internal/save/port"
)

type hero struct {
	participant.Base
	HP      int
	Name    string
	saveErr error
	loads   int
}

func newHero(id string, scope participant.Scope) *hero {
	return &hero{Base: participant.NewBase(id, scope)}
}

func (h *hero) Save(c *participant.Container) error {
	if h.saveErr != nil {
		return h.saveErr
	}
	if err := participant.Set(c, "hp", h.HP); err != nil {
		return err
	}
	return participant.Set(c, "name", h.Name)
}

func (h *hero) Load(c *participant.Container) error {
	h.loads++
	if _, err := c.Decode("hp", &h.HP); err != nil {
		return err
	}
	_, err := c.Decode("name", &h.Name)
	return err
}

var errBoom = errors.New("boom")

func newTestManager(t *testing.T, backend port.Backend, mutate ...func(*Options)) *Manager {
	t.Helper()
	if backend == nil {
		backend = memory.New()
	}
	opts := Options{Backend: backend, Parallelism: 2}
	for _, fn := range mutate {
		fn(&opts)
	}
	m, err := New(opts)
	require.NoError(t, err)
	return m
}

// recordingBackend 记录写入顺序，可在第 N 次写入后触发回调。
type recordingBackend struct {
	port.Backend
	mu      sync.Mutex
	writes  []string
	reads   int
	onWrite func(n int)
}

func (r *recordingBackend) Write(ctx context.Context, slot, name string, data []byte) error {
	if err := r.Backend.Write(ctx, slot, name, data); err != nil {
		return err
	}
	r.mu.Lock()
	r.writes = append(r.writes, name)
	n := len(r.writes)
	cb := r.onWrite
	r.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return nil
}

func (r *recordingBackend) Read(ctx context.Context, slot, name string) ([]byte, error) {
	r.mu.Lock()
	r.reads++
	r.mu.Unlock()
	return r.Backend.Read(ctx, slot, name)
}

func (r *recordingBackend) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}
