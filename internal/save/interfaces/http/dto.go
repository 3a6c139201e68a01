package http

import (
	"SaveKeeper/internal/save/partition"
	"SaveKeeper/internal/save/service"
)

// Response 是管理接口统一响应体。
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

type SlotsResp struct {
	Slots []string `json:"slots"`
}

type BucketsResp struct {
	Slot        string             `json:"slot"`
	Persistency string             `json:"persistency"`
	Manifest    []string           `json:"manifest"`
	Objects     []partition.Object `json:"objects"`
}

type BucketResp struct {
	Slot        string              `json:"slot"`
	Bucket      string              `json:"bucket"`
	Persistency string              `json:"persistency"`
	Document    *partition.Document `json:"document"`
}

type BucketResultResp struct {
	Bucket string `json:"bucket"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ReportResp struct {
	PassID      string             `json:"pass_id"`
	Action      string             `json:"action"`
	Slot        string             `json:"slot"`
	Persistency string             `json:"persistency"`
	NoOp        bool               `json:"noop"`
	Canceled    bool               `json:"canceled"`
	ElapsedMS   int64              `json:"elapsed_ms"`
	Buckets     []BucketResultResp `json:"buckets"`
	Failures    []string           `json:"failures,omitempty"`
}

func toReportResp(r service.Report) ReportResp {
	out := ReportResp{
		PassID:      r.PassID,
		Action:      r.Action,
		Slot:        r.Slot,
		Persistency: r.Persistency.String(),
		NoOp:        r.NoOp,
		Canceled:    r.Canceled,
		ElapsedMS:   r.Elapsed.Milliseconds(),
		Buckets:     make([]BucketResultResp, 0, len(r.Buckets)),
	}
	for _, b := range r.Buckets {
		item := BucketResultResp{Bucket: b.Bucket, Status: string(b.Status)}
		if b.Err != nil {
			item.Error = b.Err.Error()
		}
		out.Buckets = append(out.Buckets, item)
	}
	for _, err := range r.Failures {
		out.Failures = append(out.Failures, err.Error())
	}
	return out
}
