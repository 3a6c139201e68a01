package middleware

import (
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"SaveKeeper/internal/shared/transport"
	"SaveKeeper/modules/kit/logx"
)

func TestAccessLog_记录路由slot与业务码(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	l := logx.NewZapLogger(zap.New(core))

	e := gin.New()
	e.Use(AccessLog(l), Recovery(l))
	e.GET("/slots/:slot", func(c *gin.Context) {
		transport.SetBizCode(c.Request.Context(), transport.BizCode(transport.ConfigError))
		c.JSON(nethttp.StatusOK, gin.H{"code": transport.ConfigError})
	})
	e.GET("/boom", func(*gin.Context) { panic("boom") })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(nethttp.MethodGet, "/slots/p1", nil))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/boom", nil))
	assert.Equal(t, nethttp.StatusInternalServerError, w.Code)

	access := logs.FilterField(zap.String("log_type", "access")).All()
	require.Len(t, access, 2)
	first := access[0].ContextMap()
	assert.Equal(t, "GET /slots/:slot", first["action"])
	assert.Equal(t, "p1", first["slot"])
	assert.EqualValues(t, transport.ConfigError, first["biz_code"])
	assert.Equal(t, zapcore.ErrorLevel, access[1].Level)
}

func TestPanicError_格式化(t *testing.T) {
	assert.Equal(t, "panic: boom", panicError{"boom"}.Error())
	assert.Equal(t, "panic: 7", panicError{7}.Error())
}
