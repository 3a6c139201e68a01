// Package http 提供存档的只读查看与临时层管理接口。
package http

import (
	"context"
	nethttp "net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"SaveKeeper/internal/save/partition"
	"SaveKeeper/internal/save/saveerr"
	"SaveKeeper/internal/save/service"
	"SaveKeeper/internal/shared/transport"
	transporthttp "SaveKeeper/internal/shared/transport/http"
)

// Admin 是 handler 依赖的存档操作，*service.Manager 实现它。
type Admin interface {
	Archive() *partition.Archive
	Slots(ctx context.Context) ([]string, error)
	DeleteSlot(ctx context.Context, slot string) error
	Commit(ctx context.Context, opts ...service.PassOption) (service.Report, error)
	Flush(ctx context.Context, opts ...service.PassOption) (service.Report, error)
}

type Handler struct {
	admin    Admin
	readOnly bool
}

// NewHandler 创建 handler；readOnly 时不注册修改类路由。
func NewHandler(admin Admin, readOnly bool) *Handler {
	return &Handler{admin: admin, readOnly: readOnly}
}

func (h *Handler) HttpRegister(g *gin.RouterGroup) {
	slots := g.Group("/slots")
	slots.GET("", h.ListSlots)
	slots.GET("/:slot/buckets", h.ListBuckets)
	slots.GET("/:slot/buckets/:bucket", h.ShowBucket)
	if h.readOnly {
		return
	}
	slots.DELETE("/:slot", h.DeleteSlot)
	slots.POST("/:slot/commit", h.Commit)
	slots.POST("/:slot/flush", h.Flush)
}

var _ transporthttp.Registrar = (*Handler)(nil)

func (h *Handler) ListSlots(c *gin.Context) {
	slots, err := h.admin.Slots(c.Request.Context())
	if err != nil {
		h.error(c, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	h.ok(c, SlotsResp{Slots: slots})
}

func (h *Handler) ListBuckets(c *gin.Context) {
	ctx := c.Request.Context()
	slot := c.Param("slot")
	layer, ok := h.layer(c)
	if !ok {
		return
	}
	archive := h.admin.Archive()
	objs, err := archive.Objects(ctx, slot)
	if err != nil {
		h.error(c, err)
		return
	}
	manifest, _, err := archive.ReadManifest(ctx, slot, layer)
	if err != nil {
		h.error(c, err)
		return
	}
	resp := BucketsResp{
		Slot:        slot,
		Persistency: layer.String(),
		Manifest:    manifest.Names(),
		Objects:     make([]partition.Object, 0, len(objs)),
	}
	for _, o := range objs {
		if o.Layer() == layer {
			resp.Objects = append(resp.Objects, o)
		}
	}
	h.ok(c, resp)
}

func (h *Handler) ShowBucket(c *gin.Context) {
	slot, bucket := c.Param("slot"), c.Param("bucket")
	layer, ok := h.layer(c)
	if !ok {
		return
	}
	doc, found, err := h.admin.Archive().ReadDocument(c.Request.Context(), slot, bucket, layer)
	if err != nil {
		h.error(c, err)
		return
	}
	if !found {
		h.fail(c, transport.NotFound, "bucket not found")
		return
	}
	h.ok(c, BucketResp{Slot: slot, Bucket: bucket, Persistency: layer.String(), Document: doc})
}

func (h *Handler) DeleteSlot(c *gin.Context) {
	if err := h.admin.DeleteSlot(c.Request.Context(), c.Param("slot")); err != nil {
		h.error(c, err)
		return
	}
	h.ok(c, nil)
}

func (h *Handler) Commit(c *gin.Context) {
	r, err := h.admin.Commit(c.Request.Context(), service.WithSlot(c.Param("slot")))
	h.report(c, r, err)
}

func (h *Handler) Flush(c *gin.Context) {
	r, err := h.admin.Flush(c.Request.Context(), service.WithSlot(c.Param("slot")))
	h.report(c, r, err)
}

// layer 解析 ?temp=true；非法值直接响应参数错误。
func (h *Handler) layer(c *gin.Context) (partition.Persistency, bool) {
	raw := c.Query("temp")
	if raw == "" {
		return partition.Permanent, true
	}
	temp, err := strconv.ParseBool(raw)
	if err != nil {
		h.fail(c, transport.InvalidParam, "temp must be a boolean")
		return partition.Permanent, false
	}
	if temp {
		return partition.Temporary, true
	}
	return partition.Permanent, true
}

// report 在流程部分失败时仍返回报告，code 取第一个失败的错误码。
func (h *Handler) report(c *gin.Context, r service.Report, err error) {
	if err == nil {
		h.ok(c, toReportResp(r))
		return
	}
	code, msg := h.describe(c.Request.Context(), err)
	h.respond(c, Response{Code: code, Msg: msg, Data: toReportResp(r)})
}

func (h *Handler) ok(c *gin.Context, data any) {
	h.respond(c, Response{Code: transport.OK, Msg: "ok", Data: data})
}

func (h *Handler) fail(c *gin.Context, code int, msg string) {
	h.respond(c, Response{Code: code, Msg: msg})
}

// respond 业务结果都走 200，code 同时记进访问日志。
func (h *Handler) respond(c *gin.Context, resp Response) {
	transport.SetBizCode(c.Request.Context(), transport.BizCode(resp.Code))
	c.JSON(nethttp.StatusOK, resp)
}

func (h *Handler) error(c *gin.Context, err error) {
	code, msg := h.describe(c.Request.Context(), err)
	h.fail(c, code, msg)
}

// describe 可预期错误返回原始描述，技术类错误只返回笼统描述。
func (h *Handler) describe(ctx context.Context, err error) (int, string) {
	var e *saveerr.Error
	if !saveerr.AsError(err, &e) {
		return transport.SystemError, "internal error"
	}
	transport.SetErrorReason(ctx, e.Reason())
	if saveerr.IsSystem(err) {
		return transport.CodeForError(err), "storage unavailable"
	}
	return transport.CodeForError(err), err.Error()
}
