package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"SaveKeeper/internal/save/partition"
)

// Commit 把临时层合并进正式层（临时层优先，临时层记录的删除生效），
// 更新正式清单后删除已提交的临时文件；全部成功时一并删除临时清单。
func (m *Manager) Commit(ctx context.Context, opts ...PassOption) (Report, error) {
	cfg := m.passConfig(opts)
	cfg.persistency = partition.Temporary
	if err := partition.ValidateSlot(cfg.slot); err != nil {
		return Report{Action: actionCommit, Slot: cfg.slot, Persistency: cfg.persistency}, err
	}

	m.passMu.Lock()
	defer m.passMu.Unlock()

	p := m.begin(ctx, actionCommit, cfg)
	m.commit(p, cfg)
	return m.finish(p), p.report.Err()
}

func (m *Manager) commit(p *pass, cfg passConfig) {
	temps, _ := m.listedOrStored(p.ctx, p, cfg.slot, partition.Temporary)
	if temps.Len() == 0 {
		p.report.NoOp = true
		return
	}
	permanent, manifestOK := m.currentManifest(p, cfg.slot, partition.Permanent)

	names := temps.Names()
	results := make([]BucketResult, len(names))
	var g errgroup.Group
	g.SetLimit(m.opts.Parallelism)
	for i, bucket := range names {
		if p.ctx.Err() != nil {
			results[i] = BucketResult{Bucket: bucket, Status: BucketCanceled}
			continue
		}
		g.Go(func() error {
			results[i] = m.commitBucket(p.ctx, cfg.slot, bucket)
			return nil
		})
	}
	_ = g.Wait()
	p.report.Buckets = results

	var committed []string
	clean := true
	for _, r := range results {
		switch r.Status {
		case BucketCommitted:
			committed = append(committed, r.Bucket)
		case BucketMissing:
		case BucketFailed:
			clean = false
			p.report.fail(r.Err)
		default:
			clean = false
		}
	}
	m.checkCanceled(p)
	if len(committed) == 0 || !manifestOK {
		return
	}

	mctx := context.WithoutCancel(p.ctx)
	next := permanent.Union(partition.NewManifest(committed...))
	if err := m.archive.WriteManifest(mctx, cfg.slot, partition.Permanent, next); err != nil {
		// 正式清单没写成功时保留临时层，下次提交会重做。
		p.report.fail(err)
		return
	}
	for _, bucket := range committed {
		if err := m.archive.RemoveDocument(mctx, cfg.slot, bucket, partition.Temporary); err != nil {
			clean = false
			p.report.fail(err)
		}
	}
	if clean {
		p.report.fail(m.archive.RemoveManifest(mctx, cfg.slot, partition.Temporary))
	}
}

func (m *Manager) commitBucket(ctx context.Context, slot, bucket string) BucketResult {
	temp, found, err := m.archive.ReadDocument(ctx, slot, bucket, partition.Temporary)
	if err != nil {
		return resultFor(bucket, err)
	}
	if !found {
		return BucketResult{Bucket: bucket, Status: BucketMissing}
	}
	base, _, err := m.archive.ReadDocument(ctx, slot, bucket, partition.Permanent)
	if err != nil {
		return resultFor(bucket, err)
	}
	merged := partition.Merge(base, temp, temp.Removed)
	if err := m.archive.WriteDocument(ctx, slot, bucket, partition.Permanent, merged); err != nil {
		return resultFor(bucket, err)
	}
	return BucketResult{Bucket: bucket, Status: BucketCommitted}
}

// Flush 删除临时层的全部 bucket 文件与临时清单，正式层不受影响。
func (m *Manager) Flush(ctx context.Context, opts ...PassOption) (Report, error) {
	cfg := m.passConfig(opts)
	cfg.persistency = partition.Temporary
	if err := partition.ValidateSlot(cfg.slot); err != nil {
		return Report{Action: actionFlush, Slot: cfg.slot, Persistency: cfg.persistency}, err
	}

	m.passMu.Lock()
	defer m.passMu.Unlock()

	p := m.begin(ctx, actionFlush, cfg)
	m.flush(p, cfg)
	return m.finish(p), p.report.Err()
}

func (m *Manager) flush(p *pass, cfg passConfig) {
	temps, listed := m.listedOrStored(p.ctx, p, cfg.slot, partition.Temporary)
	names := temps.Names()
	results := make([]BucketResult, len(names))
	var g errgroup.Group
	g.SetLimit(m.opts.Parallelism)
	for i, bucket := range names {
		if p.ctx.Err() != nil {
			results[i] = BucketResult{Bucket: bucket, Status: BucketCanceled}
			continue
		}
		g.Go(func() error {
			if err := m.archive.RemoveDocument(p.ctx, cfg.slot, bucket, partition.Temporary); err != nil {
				results[i] = resultFor(bucket, err)
				return nil
			}
			results[i] = BucketResult{Bucket: bucket, Status: BucketRemoved}
			return nil
		})
	}
	_ = g.Wait()
	p.report.Buckets = results

	clean := listed
	for _, r := range results {
		if r.Status != BucketRemoved {
			clean = false
		}
		if r.Status == BucketFailed {
			p.report.fail(r.Err)
		}
	}
	m.checkCanceled(p)
	if clean && p.ctx.Err() == nil {
		p.report.fail(m.archive.RemoveManifest(p.ctx, cfg.slot, partition.Temporary))
	}
	if len(names) == 0 {
		p.report.NoOp = true
	}
}
