package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/gin-gonic/gin"

	"github.com/macmann/mealmebase/internal/agent"
	"github.com/macmann/mealmebase/internal/bot"
	"github.com/macmann/mealmebase/internal/config"
	"github.com/macmann/mealmebase/internal/gateway"
	"github.com/macmann/mealmebase/internal/model"
	"github.com/macmann/mealmebase/web"
)

// Server 基于 Gin 的 HTTP 服务器
type Server struct {
	config     *config.Config
	engine     *gin.Engine
	server     *http.Server
	gateway    *gateway.Gateway
	registry   *agent.Registry
	supervisor *bot.Supervisor
	auth       *authStore
}

// New 创建 HTTP 服务器
func New(cfg *config.Config, gw *gateway.Gateway, registry *agent.Registry, supervisor *bot.Supervisor) *Server {
	if cfg.Server.HTTP.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:     cfg,
		engine:     gin.New(),
		gateway:    gw,
		registry:   registry,
		supervisor: supervisor,
		auth:       newAuthStore(),
	}

	s.registerMiddlewares()
	s.registerRoutes()

	return s
}

// registerMiddlewares 注册中间件
func (s *Server) registerMiddlewares() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())
	s.engine.Use(s.corsMiddleware())
}

// loggingMiddleware 请求日志中间件
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		logx.Info("HTTP %s %s, status %d, duration %s, remote_addr %s",
			method, path, status, duration, c.ClientIP())
	}
}

// corsMiddleware CORS 中间件
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// registerRoutes 注册路由
func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.POST("/auth/login", s.handleLogin)
		v1.POST("/auth/logout", s.handleLogout)

		authed := v1.Group("")
		authed.Use(s.authMiddleware())
		{
			authed.GET("/auth/userinfo", s.handleUserInfo)

			authed.GET("/agents", s.handleAgentList)
			authed.POST("/agents", s.handleAgentCreate)
			authed.GET("/agents/:id", s.handleAgentGet)
			authed.PUT("/agents/:id", s.handleAgentUpdate)

			authed.POST("/agents/:id/documents", s.handleDocumentUpload)
			authed.GET("/agents/:id/documents", s.handleDocumentList)
			authed.DELETE("/agents/:id/documents/:docId", s.handleDocumentDelete)

			authed.POST("/chat", s.handleChat)
			authed.GET("/chat/history", s.handleChatHistory)
		}
	}

	s.registerStatic()
}

// registerStatic 挂载内嵌的前端静态资源
func (s *Server) registerStatic() {
	fsys, err := web.GetFileSystem()
	if err != nil {
		logx.Warn("Frontend assets unavailable: %v", err)
		return
	}

	s.engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, model.Response{Code: 404, Message: "not found"})
			return
		}
		c.FileFromFS(c.Request.URL.Path, fsys)
	})
}

// handleHealth 健康检查
func (s *Server) handleHealth(c *gin.Context) {
	s.success(c, gin.H{"status": "ok"})
}

// Start 启动 HTTP 服务器
func (s *Server) Start() error {
	addr := fmt.Sprintf("0.0.0.0:%d", s.config.Server.HTTP.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	logx.Info("🛜 Starting HTTP server, addr %s", addr)
	return s.server.ListenAndServe()
}

// Stop 优雅停止 HTTP 服务器
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// success 返回成功响应
func (s *Server) success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, model.Response{
		Code:    200,
		Message: "Success",
		Data:    data,
	})
}

// fail 返回错误响应
func (s *Server) fail(c *gin.Context, code int, message string) {
	c.JSON(code, model.Response{
		Code:    code,
		Message: message,
	})
}
