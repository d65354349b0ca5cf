package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/macmann/mealmebase/internal/config"
	"github.com/macmann/mealmebase/internal/database"
	"github.com/macmann/mealmebase/internal/model"
)

// authStore 进程内的不透明令牌存储
// 令牌随进程重启失效,管理端重新登录即可
type authStore struct {
	mu     sync.RWMutex
	tokens map[string]string // token -> username
}

func newAuthStore() *authStore {
	return &authStore{tokens: make(map[string]string)}
}

func (a *authStore) issue(username string) string {
	token := uuid.New().String()
	a.mu.Lock()
	a.tokens[token] = username
	a.mu.Unlock()
	return token
}

func (a *authStore) lookup(token string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	username, ok := a.tokens[token]
	return username, ok
}

func (a *authStore) revoke(token string) {
	a.mu.Lock()
	delete(a.tokens, token)
	a.mu.Unlock()
}

// EnsureAdmin 首次启动时用配置中的凭证创建管理员账号
func EnsureAdmin(cfg *config.Config) error {
	if cfg.Admin.Password == "" {
		logx.Warn("Admin password not configured, skipping admin bootstrap")
		return nil
	}

	db := database.GetDB()

	var user model.User
	err := db.Where("username = ?", cfg.Admin.Username).First(&user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user = model.User{
		Username: cfg.Admin.Username,
		Nickname: "Administrator",
		Enabled:  true,
	}
	if err := user.SetPassword(cfg.Admin.Password); err != nil {
		return err
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	logx.Info("Admin user %s created", cfg.Admin.Username)
	return nil
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
}

// handleLogin 用户登录
func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid login request: "+err.Error())
		return
	}

	db := database.GetDB()

	var user model.User
	if err := db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		s.fail(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	if !user.Enabled {
		s.fail(c, http.StatusForbidden, "user is disabled")
		return
	}

	if !user.CheckPassword(req.Password) {
		s.fail(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token := s.auth.issue(user.Username)

	s.success(c, LoginResponse{
		AccessToken: token,
		Username:    user.Username,
		Nickname:    user.Nickname,
	})
}

// handleLogout 用户登出
func (s *Server) handleLogout(c *gin.Context) {
	if token := bearerToken(c); token != "" {
		s.auth.revoke(token)
	}
	s.success(c, nil)
}

// handleUserInfo 获取当前用户信息
func (s *Server) handleUserInfo(c *gin.Context) {
	username := c.GetString("username")

	db := database.GetDB()
	var user model.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		s.fail(c, http.StatusNotFound, "user not found")
		return
	}

	s.success(c, gin.H{
		"username": user.Username,
		"nickname": user.Nickname,
	})
}

// authMiddleware 校验 Bearer 令牌
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.Response{Code: 401, Message: "missing token"})
			return
		}

		username, ok := s.auth.lookup(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.Response{Code: 401, Message: "invalid token"})
			return
		}

		c.Set("username", username)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
