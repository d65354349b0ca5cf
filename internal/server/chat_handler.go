package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/macmann/mealmebase/internal/agent"
	"github.com/macmann/mealmebase/internal/gateway"
)

// ChatRequest 对话请求
// agent_id 为空时回落到配置的默认智能体
type ChatRequest struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// ChatResponse 对话响应
type ChatResponse struct {
	AgentID string `json:"agent_id"`
	Answer  string `json:"answer"`
}

// handleChat 处理一轮试聊对话
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid chat request: "+err.Error())
		return
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = s.config.Chat.DefaultAgent
	}
	if agentID == "" {
		s.fail(c, http.StatusBadRequest, "agent_id is required, no default agent configured")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}

	answer, err := s.gateway.Chat(c.Request.Context(), gateway.ChannelDashboard, agentID, sessionID, req.Message)
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			s.fail(c, http.StatusNotFound, "agent not found")
			return
		}
		s.fail(c, http.StatusInternalServerError, "chat failed: "+err.Error())
		return
	}

	s.success(c, ChatResponse{AgentID: agentID, Answer: answer})
}

// handleChatHistory 获取试聊会话的最近历史
func (s *Server) handleChatHistory(c *gin.Context) {
	agentID := c.Query("agent_id")
	if agentID == "" {
		agentID = s.config.Chat.DefaultAgent
	}
	if agentID == "" {
		s.fail(c, http.StatusBadRequest, "agent_id is required")
		return
	}

	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = "default"
	}

	turns, err := s.gateway.History(gateway.ChannelDashboard, agentID, sessionID)
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			s.fail(c, http.StatusNotFound, "agent not found")
			return
		}
		s.fail(c, http.StatusInternalServerError, "failed to load history: "+err.Error())
		return
	}

	s.success(c, turns)
}
