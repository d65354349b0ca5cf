package llm

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	openai "github.com/sashabaranov/go-openai"

	"github.com/macmann/mealmebase/internal/memory"
	"github.com/macmann/mealmebase/internal/model"
)

// FallbackAnswer 上游模型不可用时返回的固定应答
const FallbackAnswer = "Sorry, I could not generate a response right now. Please try again."

// defaultInstruction 智能体未配置指令时使用的系统提示词
const defaultInstruction = "You are a helpful assistant. Answer using the provided context when it is relevant."

// Config 模型访问配置
type Config struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Responder 对话应答生成器
type Responder struct {
	config *Config
	client *openai.Client
}

// NewResponder 创建应答生成器
func NewResponder(config *Config) *Responder {
	clientConfig := openai.DefaultConfig(config.APIKey)

	// 直接使用配置的 BaseURL,不自动添加 /v1
	// 不同的 API 提供商路径格式不同,例如智普 AI 使用 /api/paas/v4
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
		logx.Debug("LLM client BaseURL: %s", config.BaseURL)
	}

	// 禁用 HTTP/2,强制使用 HTTP/1.1 以避免 INTERNAL_ERROR
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSNextProto:        make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	clientConfig.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}

	logx.Info("LLM client initialized, model %s", config.Model)

	return &Responder{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// Answer 根据检索上下文、会话历史和用户问题生成应答
// 永远返回非空字符串:上游失败时返回固定的兜底应答
func (r *Responder) Answer(ctx context.Context, agent *model.Agent, contextText, question string, history []memory.Turn) string {
	instruction := agent.Instruction
	if instruction == "" {
		instruction = defaultInstruction
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: instruction,
	})

	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == memory.RoleBot {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Text,
		})
	}

	// 检索到的上下文拼在问题前面,而不是塞进系统提示词,
	// 避免覆盖智能体自身的指令
	content := question
	if contextText != "" {
		content = contextText + "\n\n" + question
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: content,
	})

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.config.Model,
		Messages:    messages,
		Temperature: float32(agent.Temperature),
		TopP:        float32(agent.TopP),
	})
	if err != nil {
		logx.Error("Chat completion failed for agent %s: %v", agent.ID, err)
		return FallbackAnswer
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		logx.Warn("Chat completion returned empty answer for agent %s", agent.ID)
		return FallbackAnswer
	}

	return resp.Choices[0].Message.Content
}
