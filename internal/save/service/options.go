package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"SaveKeeper/internal/save/participant"
	"SaveKeeper/internal/save/partition"
	"SaveKeeper/internal/save/port"
	"SaveKeeper/internal/save/store"
	"SaveKeeper/modules/kit/logx"
)

const (
	// DefaultSlot 是未指定存档槽时使用的目录名。
	DefaultSlot        = "_Default"
	defaultParallelism = 4
	tracerName         = "SaveKeeper/service"
)

// Options 组装 Manager 的依赖；Store/Registry 为空时自动创建。
type Options struct {
	Store       *store.Store
	Registry    *participant.Registry
	Backend     port.Backend
	Layout      partition.Layout
	Slot        string
	Parallelism int
	Logger      logx.Logger
	Tracer      trace.Tracer
	// OnSaved / OnLoaded 在流程结束后同步调用（空操作的保存不触发）。
	OnSaved  func(Report)
	OnLoaded func(Report)
}

func (o *Options) normalize() {
	if o.Store == nil {
		o.Store = store.New()
	}
	if o.Registry == nil {
		o.Registry = participant.NewRegistry()
	}
	if o.Layout == (partition.Layout{}) {
		o.Layout = partition.DefaultLayout()
	}
	if o.Slot == "" {
		o.Slot = DefaultSlot
	}
	if o.Parallelism == 0 {
		o.Parallelism = defaultParallelism
	}
	if o.Logger == nil {
		o.Logger = logx.Nop()
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
}

// PassOption 调整单次流程。
type PassOption func(*passConfig)

type passConfig struct {
	slot        string
	persistency partition.Persistency
}

// WithPersistency 选择正式层或临时层。
func WithPersistency(p partition.Persistency) PassOption {
	return func(c *passConfig) { c.persistency = p }
}

// WithSlot 只对本次流程生效，不改变 Manager 的当前存档槽。
func WithSlot(slot string) PassOption {
	return func(c *passConfig) { c.slot = slot }
}
