package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SaveKeeper/internal/save/participant"
	"SaveKeeper/internal/save/partition"
	"SaveKeeper/internal/save/saveerr"
	"SaveKeeper/modules/kit/logx"
)

const (
	actionSave   = "save"
	actionLoad   = "load"
	actionCommit = "commit"
	actionFlush  = "flush"
)

// Save 执行一次存档：
//  1. 校验 slot 与所有待写 bucket 名（任何 I/O 之前）；
//  2. 注册表为空且 store 无待写数据时直接返回空操作；
//  3. 参与者导出到容器，store 条目按 bucket 分组；
//  4. 每个 bucket 读旧文档、合并、原子写回（并发，受 Parallelism 限制）；
//  5. 全部 bucket 结束后写清单。
//
// 单个 bucket 或参与者失败记入 Report.Failures，返回值为它们的合并错误。
func (m *Manager) Save(ctx context.Context, opts ...PassOption) (Report, error) {
	cfg := m.passConfig(opts)
	if err := partition.ValidateSlot(cfg.slot); err != nil {
		return Report{Action: actionSave, Slot: cfg.slot, Persistency: cfg.persistency}, err
	}

	m.passMu.Lock()
	defer m.passMu.Unlock()

	regs := m.registry.Registrations()
	pending := m.store.PendingBuckets()
	if len(regs) == 0 && len(pending) == 0 {
		m.opts.Logger.WithContext(ctx).Debug("save skipped, nothing to save", zap.String("slot", cfg.slot))
		return Report{Action: actionSave, Slot: cfg.slot, Persistency: cfg.persistency, NoOp: true}, nil
	}
	if err := m.validateBuckets(pending, regs); err != nil {
		m.reject(ctx, actionSave, err)
		return Report{Action: actionSave, Slot: cfg.slot, Persistency: cfg.persistency}, err
	}

	p := m.begin(ctx, actionSave, cfg)
	overlays, removed := m.collect(p, regs, pending)
	m.writeBuckets(p, cfg, overlays, removed)

	r := m.finish(p)
	if m.opts.OnSaved != nil {
		m.opts.OnSaved(r)
	}
	return r, r.Err()
}

// SaveAsync 在后台执行 Save，结果从通道取得（只发送一次后关闭）。
func (m *Manager) SaveAsync(ctx context.Context, opts ...PassOption) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		r, err := m.Save(ctx, opts...)
		ch <- Result{Report: r, Err: err}
	}()
	return ch
}

func (m *Manager) validateBuckets(pending []string, regs []participant.Registration) error {
	layout := m.archive.Layout()
	seen := make(map[string]struct{}, len(pending)+len(regs))
	var errs []error
	check := func(b string) {
		if _, ok := seen[b]; ok {
			return
		}
		seen[b] = struct{}{}
		if err := layout.ValidateBucket(b); err != nil {
			errs = append(errs, err)
		}
	}
	for _, b := range pending {
		check(b)
	}
	for _, reg := range regs {
		check(reg.Bucket)
	}
	return errors.Join(errs...)
}

// collect 让参与者导出状态，并把 store 条目编码进每个 bucket 的增量文档。
func (m *Manager) collect(p *pass, regs []participant.Registration, pending []string) (map[string]*partition.Document, map[string][]string) {
	overlays := make(map[string]*partition.Document)
	doc := func(bucket string) *partition.Document {
		d, ok := overlays[bucket]
		if !ok {
			d = partition.NewDocument()
			overlays[bucket] = d
		}
		return d
	}

	for _, reg := range regs {
		// 每次都在新容器上导出，参与者不再写的 key 随之消失；失败时活容器与磁盘旧数据不变。
		work := participant.NewContainer(reg.Container.Order())
		err := callParticipant(actionSave, reg, work, func(pp participant.Participant, c *participant.Container) error {
			return pp.Save(c)
		})
		if err != nil {
			p.report.fail(err)
			continue
		}
		m.registry.ReplaceContainer(reg.Bucket, reg.Participant.ID(), work)
		doc(reg.Bucket).Participants[reg.Participant.ID()] = work
	}

	removed := make(map[string][]string)
	for _, bucket := range pending {
		values, failed := partition.EncodeValues(m.store.Entries(bucket))
		for _, key := range sortedKeys(failed) {
			p.report.fail(saveerr.ErrFormat.WithReason(saveerr.ReasonEntryEncode).
				WithData("bucket", bucket).WithData("key", key).WithCause(failed[key]))
		}
		d := doc(bucket)
		for k, v := range values {
			d.Values[k] = v
		}
		if gone := m.store.Removed(bucket); len(gone) > 0 {
			removed[bucket] = gone
		}
	}
	return overlays, removed
}

func (m *Manager) writeBuckets(p *pass, cfg passConfig, overlays map[string]*partition.Document, removed map[string][]string) {
	manifest, manifestOK := m.currentManifest(p, cfg.slot, cfg.persistency)

	buckets := sortedKeys(overlays)
	results := make([]BucketResult, len(buckets))
	var g errgroup.Group
	g.SetLimit(m.opts.Parallelism)
	for i, bucket := range buckets {
		if p.ctx.Err() != nil {
			results[i] = BucketResult{Bucket: bucket, Status: BucketCanceled}
			continue
		}
		g.Go(func() error {
			results[i] = m.saveBucket(p.ctx, cfg, bucket, overlays[bucket], removed[bucket])
			return nil
		})
	}
	_ = g.Wait()

	p.report.Buckets = results
	var written []string
	for _, r := range results {
		switch r.Status {
		case BucketWritten:
			written = append(written, r.Bucket)
		case BucketFailed:
			p.report.fail(r.Err)
		}
	}
	m.checkCanceled(p)

	if len(written) == 0 || !manifestOK {
		return
	}
	// 清单最后写；即使已取消也写，保证已完成的 bucket 可被发现。
	mctx := p.ctx
	if mctx.Err() != nil {
		mctx = context.WithoutCancel(mctx)
	}
	next := manifest.Union(partition.NewManifest(written...))
	if err := m.archive.WriteManifest(mctx, cfg.slot, cfg.persistency, next); err != nil {
		p.report.fail(err)
	}
}

func (m *Manager) saveBucket(ctx context.Context, cfg passConfig, bucket string, overlay *partition.Document, removed []string) BucketResult {
	base, found, err := m.archive.ReadDocument(ctx, cfg.slot, bucket, cfg.persistency)
	if err != nil {
		// 旧文件损坏时不覆盖，留给人工处理。
		return resultFor(bucket, err)
	}
	merged := partition.Merge(base, overlay, removed)
	if cfg.persistency == partition.Temporary {
		merged.Removed = pendingRemovals(base, merged, removed)
	}
	if !found && merged.Empty() {
		return BucketResult{Bucket: bucket, Status: BucketUnchanged}
	}
	if err := m.archive.WriteDocument(ctx, cfg.slot, bucket, cfg.persistency, merged); err != nil {
		return resultFor(bucket, err)
	}
	if len(removed) > 0 {
		m.store.ForgetRemoved(bucket, removed...)
	}
	return BucketResult{Bucket: bucket, Status: BucketWritten}
}

// pendingRemovals 合并临时层上累计的删除，已被重新写入的 key 不算删除。
func pendingRemovals(base, merged *partition.Document, removed []string) []string {
	set := make(map[string]struct{})
	if base != nil {
		for _, k := range base.Removed {
			set[k] = struct{}{}
		}
	}
	for _, k := range removed {
		set[k] = struct{}{}
	}
	for k := range merged.Values {
		delete(set, k)
	}
	if len(set) == 0 {
		return nil
	}
	return sortedKeys(set)
}

// currentManifest 读取清单；清单损坏或不可读时从对象列表重建，重建也失败则本次不写清单。
func (m *Manager) currentManifest(p *pass, slot string, layer partition.Persistency) (*partition.Manifest, bool) {
	manifest, _, err := m.archive.ReadManifest(p.ctx, slot, layer)
	if err == nil {
		return manifest, true
	}
	p.report.fail(err)
	rebuilt, err := m.listedBuckets(p.ctx, slot, layer)
	if err != nil {
		p.report.fail(err)
		return partition.NewManifest(), false
	}
	m.opts.Logger.WithContext(p.ctx).Warn("manifest rebuilt from object listing",
		zap.String("slot", slot), zap.Strings("buckets", rebuilt.Names()))
	return rebuilt, true
}

func (m *Manager) listedBuckets(ctx context.Context, slot string, layer partition.Persistency) (*partition.Manifest, error) {
	objs, err := m.archive.Objects(ctx, slot)
	if err != nil {
		return nil, err
	}
	out := partition.NewManifest()
	for _, o := range objs {
		if !o.Manifest && o.Layer() == layer {
			out.Add(o.Bucket)
		}
	}
	return out, nil
}

func (m *Manager) checkCanceled(p *pass) {
	if err := p.ctx.Err(); err != nil {
		p.report.Canceled = true
		p.report.fail(saveerr.ErrCanceled.WithMsg(p.report.Action + " interrupted").WithCause(err))
	}
}

// resultFor 把 bucket 错误归类为失败或取消；取消不计入 Failures，由 checkCanceled 统一记录一次。
func resultFor(bucket string, err error) BucketResult {
	if saveerr.Is(err, saveerr.CodeCanceled) {
		return BucketResult{Bucket: bucket, Status: BucketCanceled, Err: err}
	}
	return BucketResult{Bucket: bucket, Status: BucketFailed, Err: err}
}

// reject 记录在任何 I/O 之前被拒绝的流程。
func (m *Manager) reject(ctx context.Context, action string, err error) {
	var e *saveerr.Error
	reason := ""
	if saveerr.AsError(err, &e) {
		reason = e.Reason()
	}
	logx.ReportBizWithLoggerContext(ctx, m.opts.Logger, logx.NewBizLog(action, reason, err.Error()))
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
