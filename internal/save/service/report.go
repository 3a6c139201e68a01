package service

import (
	"errors"
	"time"

	"SaveKeeper/internal/save/partition"
)

// BucketStatus 是单个 bucket 在一次流程中的结果。
type BucketStatus string

const (
	BucketWritten   BucketStatus = "written"
	BucketLoaded    BucketStatus = "loaded"
	BucketMissing   BucketStatus = "missing"
	BucketUnchanged BucketStatus = "unchanged"
	BucketCommitted BucketStatus = "committed"
	BucketRemoved   BucketStatus = "removed"
	BucketFailed    BucketStatus = "failed"
	BucketCanceled  BucketStatus = "canceled"
)

type BucketResult struct {
	Bucket string
	Status BucketStatus
	Err    error
}

// Report 汇总一次流程；Failures 中的错误互相独立，单个失败不终止流程。
type Report struct {
	PassID      string
	Action      string
	Slot        string
	Persistency partition.Persistency
	Buckets     []BucketResult
	Failures    []error
	NoOp        bool
	Canceled    bool
	Elapsed     time.Duration
}

// Err 把所有失败合并为一个错误；无失败返回 nil。
func (r Report) Err() error {
	return errors.Join(r.Failures...)
}

// With 返回处于指定状态的 bucket 名。
func (r Report) With(status BucketStatus) []string {
	var out []string
	for _, b := range r.Buckets {
		if b.Status == status {
			out = append(out, b.Bucket)
		}
	}
	return out
}

func (r Report) count(statuses ...BucketStatus) int {
	n := 0
	for _, b := range r.Buckets {
		for _, s := range statuses {
			if b.Status == s {
				n++
				break
			}
		}
	}
	return n
}

func (r *Report) fail(err error) {
	if err != nil {
		r.Failures = append(r.Failures, err)
	}
}

// Result 是异步流程的返回值。
type Result struct {
	Report Report
	Err    error
}
