package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SaveKeeper/internal/save/participant"
	"SaveKeeper/internal/save/partition"
	"SaveKeeper/internal/save/saveerr"
)

type loadedBucket struct {
	doc   *partition.Document
	found bool
	err   error
}

// Load 执行一次读档：
//  1. 读清单；不存在视为没有存档，返回空操作；
//  2. 并发读取清单列出的 bucket；缺失跳过，损坏记失败，其余继续；
//  3. 按 bucket 名顺序替换 store 中对应 bucket，并把容器分发给匹配的参与者。
//
// 清单之外的 bucket 不受影响；没有存档数据的参与者保持当前状态。
// 流程被取消时不应用任何 bucket。
func (m *Manager) Load(ctx context.Context, opts ...PassOption) (Report, error) {
	cfg := m.passConfig(opts)
	if err := partition.ValidateSlot(cfg.slot); err != nil {
		return Report{Action: actionLoad, Slot: cfg.slot, Persistency: cfg.persistency}, err
	}

	m.passMu.Lock()
	defer m.passMu.Unlock()

	p := m.begin(ctx, actionLoad, cfg)
	m.load(p, cfg)

	r := m.finish(p)
	if m.opts.OnLoaded != nil {
		m.opts.OnLoaded(r)
	}
	return r, r.Err()
}

// LoadAsync 在后台执行 Load。
func (m *Manager) LoadAsync(ctx context.Context, opts ...PassOption) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		r, err := m.Load(ctx, opts...)
		ch <- Result{Report: r, Err: err}
	}()
	return ch
}

func (m *Manager) load(p *pass, cfg passConfig) {
	manifest, found, err := m.archive.ReadManifest(p.ctx, cfg.slot, cfg.persistency)
	if err != nil {
		p.report.fail(err)
		return
	}
	if !found {
		p.report.NoOp = true
		m.opts.Logger.WithContext(p.ctx).Info("no saved data", zap.String("slot", cfg.slot))
		return
	}

	names := manifest.Names()
	loaded := make([]loadedBucket, len(names))
	var g errgroup.Group
	g.SetLimit(m.opts.Parallelism)
	for i, bucket := range names {
		if p.ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			doc, ok, err := m.archive.ReadDocument(p.ctx, cfg.slot, bucket, cfg.persistency)
			loaded[i] = loadedBucket{doc: doc, found: ok, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if p.ctx.Err() != nil {
		for _, bucket := range names {
			p.report.Buckets = append(p.report.Buckets, BucketResult{Bucket: bucket, Status: BucketCanceled})
		}
		m.checkCanceled(p)
		return
	}

	byBucket := m.registry.ByBucket()
	for i, bucket := range names {
		res := loaded[i]
		switch {
		case res.err != nil:
			r := resultFor(bucket, res.err)
			p.report.Buckets = append(p.report.Buckets, r)
			p.report.fail(res.err)
		case !res.found:
			m.opts.Logger.WithContext(p.ctx).Warn("bucket listed in manifest is missing, skipped",
				zap.String("slot", cfg.slot), zap.String("bucket", bucket))
			p.report.Buckets = append(p.report.Buckets, BucketResult{Bucket: bucket, Status: BucketMissing})
		default:
			m.applyBucket(p, bucket, res.doc, byBucket[bucket])
			p.report.Buckets = append(p.report.Buckets, BucketResult{Bucket: bucket, Status: BucketLoaded})
		}
	}
}

func (m *Manager) applyBucket(p *pass, bucket string, doc *partition.Document, regs []participant.Registration) {
	tokens, failed := partition.DecodeValues(doc.Values)
	for _, key := range sortedKeys(failed) {
		p.report.fail(saveerr.ErrFormat.WithReason(saveerr.ReasonBucketCorrupt).
			WithData("bucket", bucket).WithData("key", key).WithCause(failed[key]))
	}
	m.store.ReplaceBucket(bucket, tokens)

	for _, reg := range regs {
		id := reg.Participant.ID()
		saved, ok := doc.Participants[id]
		if !ok {
			continue
		}
		if !m.registry.ReplaceContainer(bucket, id, saved) {
			continue
		}
		c, _ := m.registry.Container(bucket, id)
		err := callParticipant(actionLoad, reg, c, func(pp participant.Participant, c *participant.Container) error {
			return pp.Load(c)
		})
		p.report.fail(err)
	}
}

// listedOrStored 返回某一层的全部 bucket：清单内容与对象列表的并集。
func (m *Manager) listedOrStored(ctx context.Context, p *pass, slot string, layer partition.Persistency) (*partition.Manifest, bool) {
	manifest, _, err := m.archive.ReadManifest(ctx, slot, layer)
	if err != nil {
		p.report.fail(err)
		manifest = partition.NewManifest()
	}
	listed, err := m.listedBuckets(ctx, slot, layer)
	if err != nil {
		p.report.fail(err)
		return manifest, false
	}
	return manifest.Union(listed), true
}
