// Package service 编排存档/读档流程：收集参与者与 store 数据，按 bucket 合并写盘，清单最后写入。
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"SaveKeeper/internal/save/participant"
	"SaveKeeper/internal/save/partition"
	"SaveKeeper/internal/save/saveerr"
	"SaveKeeper/internal/save/store"
	"SaveKeeper/modules/kit/logx"
	"SaveKeeper/modules/kit/tracex"
)

// Manager 持有一个 store、一个参与者注册表和一个存档后端。
//
// 同一 Manager 上的流程互斥执行：第二个流程会等第一个结束，不会交错读写清单。
type Manager struct {
	store    *store.Store
	registry *participant.Registry
	archive  *partition.Archive
	opts     Options

	passMu sync.Mutex

	slotMu sync.RWMutex
	slot   string
}

func New(opts Options) (*Manager, error) {
	opts.normalize()
	if opts.Parallelism < 0 {
		return nil, saveerr.Config(saveerr.ReasonParallelismRange,
			fmt.Sprintf("parallelism %d must be positive", opts.Parallelism))
	}
	if err := partition.ValidateSlot(opts.Slot); err != nil {
		return nil, err
	}
	archive, err := partition.NewArchive(opts.Backend, opts.Layout)
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:    opts.Store,
		registry: opts.Registry,
		archive:  archive,
		opts:     opts,
		slot:     opts.Slot,
	}, nil
}

func (m *Manager) Store() *store.Store {
	return m.store
}

func (m *Manager) Registry() *participant.Registry {
	return m.registry
}

func (m *Manager) Archive() *partition.Archive {
	return m.archive
}

// Slot 返回当前存档槽。
func (m *Manager) Slot() string {
	m.slotMu.RLock()
	defer m.slotMu.RUnlock()
	return m.slot
}

// SetSlot 切换存档槽；名字非法时保持原值。
func (m *Manager) SetSlot(slot string) error {
	if err := partition.ValidateSlot(slot); err != nil {
		return err
	}
	m.slotMu.Lock()
	defer m.slotMu.Unlock()
	m.slot = slot
	return nil
}

// Slots 列出后端中已有数据的存档槽。
func (m *Manager) Slots(ctx context.Context) ([]string, error) {
	return m.archive.Slots(ctx)
}

// DeleteSlot 删除整个存档槽（两个持久层）；与存档/读档流程互斥。
func (m *Manager) DeleteSlot(ctx context.Context, slot string) error {
	if err := partition.ValidateSlot(slot); err != nil {
		return err
	}
	m.passMu.Lock()
	defer m.passMu.Unlock()
	err := m.archive.DeleteSlot(ctx, slot)
	if err != nil {
		logx.ReportSysErrorWithLoggerContext(ctx, m.opts.Logger, logx.NewSysLog("delete_slot", err), zap.String("slot", slot))
		return err
	}
	m.opts.Logger.WithContext(ctx).Info("slot deleted", zap.String("slot", slot))
	return nil
}

func (m *Manager) passConfig(opts []PassOption) passConfig {
	cfg := passConfig{slot: m.Slot(), persistency: partition.Permanent}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// pass 是一次流程的运行时上下文。
type pass struct {
	ctx    context.Context
	span   trace.Span
	start  time.Time
	report Report
}

func (m *Manager) begin(ctx context.Context, action string, cfg passConfig) *pass {
	passID := tracex.NewPassID()
	ctx = tracex.WithPassID(ctx, passID)
	ctx, span := m.opts.Tracer.Start(ctx, action, trace.WithAttributes(
		attribute.String("save.slot", cfg.slot),
		attribute.String("save.persistency", cfg.persistency.String()),
		attribute.String("save.pass_id", passID),
	))
	return &pass{
		ctx:   ctx,
		span:  span,
		start: time.Now(),
		report: Report{
			PassID:      passID,
			Action:      action,
			Slot:        cfg.slot,
			Persistency: cfg.persistency,
		},
	}
}

// finish 记录汇总日志、逐条失败日志并结束 span。
func (m *Manager) finish(p *pass) Report {
	p.report.Elapsed = time.Since(p.start)
	r := p.report
	l := m.opts.Logger

	for _, err := range r.Failures {
		var e *saveerr.Error
		if saveerr.AsError(err, &e) && !e.System() {
			logx.ReportBizWithLoggerContext(p.ctx, l, logx.NewBizLog(r.Action, e.Reason(), e.Error()))
			continue
		}
		logx.ReportSysErrorWithLoggerContext(p.ctx, l, logx.NewSysLog(r.Action, err))
	}
	logx.ReportPassWithLoggerContext(p.ctx, l, logx.PassLog{
		Action:   r.Action,
		Slot:     r.Slot,
		Buckets:  r.count(BucketWritten, BucketLoaded, BucketCommitted, BucketRemoved),
		Skipped:  r.count(BucketMissing, BucketUnchanged, BucketCanceled),
		Failures: len(r.Failures),
		Elapsed:  r.Elapsed,
	}, zap.String("persistency", r.Persistency.String()), zap.Bool("canceled", r.Canceled))

	p.span.SetAttributes(
		attribute.Int("save.buckets", len(r.Buckets)),
		attribute.Int("save.failures", len(r.Failures)),
	)
	if len(r.Failures) > 0 {
		p.span.RecordError(r.Err())
		p.span.SetStatus(codes.Error, fmt.Sprintf("%d failures", len(r.Failures)))
	}
	p.span.End()
	return r
}

// callParticipant 调用外部实现；panic 转为参与者错误，不打断整个流程。
func callParticipant(action string, reg participant.Registration, c *participant.Container,
	fn func(participant.Participant, *participant.Container) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("participant panicked: %v", rec)
		}
		if err != nil {
			reason := saveerr.ReasonParticipantSave
			if action == actionLoad {
				reason = saveerr.ReasonParticipantLoad
			}
			err = saveerr.ErrParticipant.WithReason(reason).
				WithData("participant_id", reg.Participant.ID()).
				WithData("bucket", reg.Bucket).
				WithCause(err)
		}
	}()
	return fn(reg.Participant, c)
}
