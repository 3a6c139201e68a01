package http

import (
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"SaveKeeper/modules/kit/logx"
)

type pingModule struct{}

func (pingModule) HttpRegister(g *gin.RouterGroup) {
	g.GET("/ping", func(c *gin.Context) { c.JSON(nethttp.StatusOK, gin.H{"code": 0}) })
	g.GET("/boom", func(*gin.Context) { panic("boom") })
}

func TestNewHttpServer_Healthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewHttpServer(":0", gin.New(), logx.Nop())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/healthz", nil))
	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"msg":"ok"}`, w.Body.String())
}

func TestServer_Register挂载模块路由并兜住panic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewHttpServer(":0", nil, logx.Nop())
	s.Register(pingModule{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/ping", nil))
	assert.Equal(t, nethttp.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/boom", nil))
	assert.Equal(t, nethttp.StatusInternalServerError, w.Code)
}
