package http

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"

	"SaveKeeper/internal/shared/transport/http/middleware"
	"SaveKeeper/modules/kit/logx"
)

// Registrar 是可以把路由挂到服务上的模块。
type Registrar interface {
	HttpRegister(g *gin.RouterGroup)
}

type Server struct {
	engine *gin.Engine
	group  *gin.RouterGroup
	srv    *nethttp.Server
}

func NewHttpServer(addr string, engine *gin.Engine, logger logx.Logger) *Server {
	if engine == nil {
		engine = gin.New()
	}
	engine.Use(middleware.AccessLog(logger))
	engine.Use(middleware.Recovery(logger))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"code": 0, "msg": "ok"})
	})

	return &Server{
		engine: engine,
		group:  engine.Group(""),
		srv: &nethttp.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Register 依次挂载模块路由。
func (s *Server) Register(modules ...Registrar) {
	for _, m := range modules {
		m.HttpRegister(s.group)
	}
}

// Start 启动 HTTP 服务（阻塞）。关闭时返回 net/http.ErrServerClosed。
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Group() *gin.RouterGroup {
	return s.group
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Handler() nethttp.Handler {
	return s.engine
}
