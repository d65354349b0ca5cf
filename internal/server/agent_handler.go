package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/macmann/mealmebase/internal/agent"
)

// CreateAgentRequest 创建智能体请求
type CreateAgentRequest struct {
	Name        string `json:"name" binding:"required"`
	Instruction string `json:"instruction"`
	BotToken    string `json:"bot_token"`
}

// UpdateAgentRequest 更新智能体请求,缺省字段保持原值
type UpdateAgentRequest struct {
	Name        *string  `json:"name"`
	Instruction *string  `json:"instruction"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
	TopK        *int     `json:"top_k"`
	BotToken    *string  `json:"bot_token"`
}

// handleAgentList 获取智能体列表
func (s *Server) handleAgentList(c *gin.Context) {
	s.success(c, s.registry.List())
}

// handleAgentGet 获取单个智能体
func (s *Server) handleAgentGet(c *gin.Context) {
	ag, err := s.registry.Get(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusNotFound, "agent not found")
		return
	}
	s.success(c, ag)
}

// handleAgentCreate 创建智能体
func (s *Server) handleAgentCreate(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid agent request: "+err.Error())
		return
	}

	ag, err := s.registry.Create(c.Request.Context(), agent.CreateParams{
		Name:        req.Name,
		Instruction: req.Instruction,
		BotToken:    req.BotToken,
	})
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to create agent: "+err.Error())
		return
	}

	// 带凭证创建的智能体立即拉起机器人连接
	s.supervisor.Sync(ag)

	s.success(c, ag)
}

// handleAgentUpdate 更新智能体
func (s *Server) handleAgentUpdate(c *gin.Context) {
	var req UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid agent request: "+err.Error())
		return
	}

	if req.TopK != nil && *req.TopK <= 0 {
		s.fail(c, http.StatusBadRequest, "top_k must be positive")
		return
	}

	ag, err := s.registry.Update(c.Param("id"), agent.UpdateParams{
		Name:        req.Name,
		Instruction: req.Instruction,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		BotToken:    req.BotToken,
	})
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			s.fail(c, http.StatusNotFound, "agent not found")
			return
		}
		s.fail(c, http.StatusInternalServerError, "failed to update agent: "+err.Error())
		return
	}

	// 凭证可能变化,让连接状态跟上
	s.supervisor.Sync(ag)

	s.success(c, ag)
}
