package gateway

import (
	"context"
	"strconv"

	"cnb.cool/zhiqiangwang/pkg/logx"

	"github.com/macmann/mealmebase/internal/agent"
	"github.com/macmann/mealmebase/internal/bot"
	"github.com/macmann/mealmebase/internal/ingest"
	"github.com/macmann/mealmebase/internal/llm"
	"github.com/macmann/mealmebase/internal/memory"
	"github.com/macmann/mealmebase/internal/model"
	"github.com/macmann/mealmebase/internal/vectorstore"
)

// Channel 会话渠道
type Channel string

const (
	// ChannelDashboard 管理后台的试聊渠道,历史只存内存
	ChannelDashboard Channel = "dashboard"
	// ChannelBot Telegram 渠道,历史写穿到数据库
	ChannelBot Channel = "bot"
)

// Retriever 知识检索接口
type Retriever interface {
	Retrieve(ctx context.Context, collection, query string, topK int) string
}

// Responder 应答生成接口
type Responder interface {
	Answer(ctx context.Context, agent *model.Agent, contextText, question string, history []memory.Turn) string
}

// Ingestor 文档入库接口
type Ingestor interface {
	Ingest(ctx context.Context, collection string, files []ingest.File) error
}

// Gateway 对话网关,串起检索、记忆与应答的统一门面
// 两个渠道共用同一条对话管线,只在历史存储上有差别
type Gateway struct {
	registry  *agent.Registry
	retriever Retriever
	responder Responder
	ingestor  Ingestor
	store     vectorstore.Store

	dashboard *memory.Store
	bots      *memory.Store
}

// Options 网关依赖
type Options struct {
	Registry  *agent.Registry
	Retriever Retriever
	Responder Responder
	Ingestor  Ingestor
	Store     vectorstore.Store
	Dashboard *memory.Store
	Bots      *memory.Store
}

// New 创建对话网关
func New(opts Options) *Gateway {
	return &Gateway{
		registry:  opts.Registry,
		retriever: opts.Retriever,
		responder: opts.Responder,
		ingestor:  opts.Ingestor,
		store:     opts.Store,
		dashboard: opts.Dashboard,
		bots:      opts.Bots,
	}
}

// Chat 处理一条入站消息并返回应答
// 只有智能体不存在时返回错误;检索和生成失败都在内部降级,
// 保证已知智能体的提问总能得到非空回答
func (g *Gateway) Chat(ctx context.Context, channel Channel, agentID, sessionKey, message string) (string, error) {
	ag, err := g.registry.Get(agentID)
	if err != nil {
		return "", err
	}

	mem := g.memoryFor(channel)
	bucket := memory.Key(agentID, sessionKey)
	history := mem.Recent(bucket)

	contextText := g.retriever.Retrieve(ctx, ag.Collection, message, ag.TopK)
	answer := g.responder.Answer(ctx, ag, contextText, message, history)

	mem.Append(bucket, memory.RoleUser, message)
	mem.Append(bucket, memory.RoleBot, answer)

	return answer, nil
}

// History 返回某会话的最近历史(从旧到新)
func (g *Gateway) History(channel Channel, agentID, sessionKey string) ([]memory.Turn, error) {
	if _, err := g.registry.Get(agentID); err != nil {
		return nil, err
	}
	return g.memoryFor(channel).Recent(memory.Key(agentID, sessionKey)), nil
}

// Ingest 把一批文件写入智能体的专属集合
func (g *Gateway) Ingest(ctx context.Context, agentID string, files []ingest.File) error {
	ag, err := g.registry.Get(agentID)
	if err != nil {
		return err
	}
	return g.ingestor.Ingest(ctx, ag.Collection, files)
}

// ListDocuments 列出智能体集合内的全部文档
func (g *Gateway) ListDocuments(ctx context.Context, agentID string) ([]vectorstore.Point, error) {
	ag, err := g.registry.Get(agentID)
	if err != nil {
		return nil, err
	}
	return g.store.ScrollAll(ctx, ag.Collection)
}

// DeleteDocument 删除集合内的单个文档,点位不存在时也视为成功
func (g *Gateway) DeleteDocument(ctx context.Context, agentID string, pointID uint64) error {
	ag, err := g.registry.Get(agentID)
	if err != nil {
		return err
	}
	return g.store.Delete(ctx, ag.Collection, pointID)
}

// BotChatFunc 构造机器人轮询器使用的消息处理函数
// 机器人侧没有返回错误的去处,任何失败都转换为兜底应答
func (g *Gateway) BotChatFunc() bot.ChatFunc {
	return func(ctx context.Context, agentID string, chatID int64, text string) string {
		answer, err := g.Chat(ctx, ChannelBot, agentID, strconv.FormatInt(chatID, 10), text)
		if err != nil {
			logx.Error("Bot chat failed for agent %s: %v", agentID, err)
			return llm.FallbackAnswer
		}
		return answer
	}
}

func (g *Gateway) memoryFor(channel Channel) *memory.Store {
	if channel == ChannelBot {
		return g.bots
	}
	return g.dashboard
}
