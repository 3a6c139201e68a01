package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"SaveKeeper/internal/shared/transport"
	"SaveKeeper/modules/kit/logx"
)

// AccessLog 给每个请求挂 AccessLog 上下文，请求结束后输出一条访问日志。
func AccessLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx := transport.WithAccessLog(c.Request.Context(), c.Request.Method+" "+route)
		if slot := c.Param("slot"); slot != "" {
			transport.SetSlot(ctx, slot)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		transport.Finish(ctx, log, c.Writer.Status())
	}
}

// Recovery 把 handler 的 panic 转成 500 并记系统错误日志。
func Recovery(log logx.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		ctx := c.Request.Context()
		transport.SetBizCode(ctx, transport.BizCode(transport.SystemError))
		logx.ReportSysErrorWithLoggerContext(ctx, log,
			logx.NewSysLog(c.Request.Method+" "+c.FullPath(), panicError{rec}))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": transport.SystemError, "msg": "internal error"})
	})
}

type panicError struct{ v any }

func (p panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.v)
}
