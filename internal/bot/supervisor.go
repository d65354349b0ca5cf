package bot

import (
	"sync"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"

	"github.com/macmann/mealmebase/internal/model"
)

// stopTimeout 单个轮询器的关停等待上限
const stopTimeout = 5 * time.Second

// Supervisor 机器人连接管理器
// 每个配置了凭证的智能体对应一个长轮询工作器;
// 凭证变化时重建连接,凭证不变时保持现状
type Supervisor struct {
	mu      sync.Mutex
	pollers map[string]*poller
	tokens  map[string]string

	chatFn ChatFunc

	// NewClient 客户端工厂,测试时可替换
	NewClient func(token string) (Client, error)
}

// NewSupervisor 创建连接管理器
func NewSupervisor(chatFn ChatFunc) *Supervisor {
	return &Supervisor{
		pollers:   make(map[string]*poller),
		tokens:    make(map[string]string),
		chatFn:    chatFn,
		NewClient: NewTelegramClient,
	}
}

// Sync 让智能体的连接状态与其当前凭证对齐
// 凭证为空则停止连接,凭证未变则不动,凭证变化则先停旧再起新
func (s *Supervisor) Sync(agent *model.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, running := s.tokens[agent.ID]

	if agent.BotToken == "" {
		if running {
			s.stopLocked(agent.ID)
			logx.Info("Bot %s stopped, token cleared", agent.ID)
		}
		return
	}

	if running && current == agent.BotToken {
		return
	}

	if running {
		s.stopLocked(agent.ID)
	}

	client, err := s.NewClient(agent.BotToken)
	if err != nil {
		logx.Error("Bot %s failed to connect: %v", agent.ID, err)
		return
	}

	p := newPoller(agent.ID, client, s.chatFn)
	s.pollers[agent.ID] = p
	s.tokens[agent.ID] = agent.BotToken

	go p.run()
	logx.Info("Bot %s polling started", agent.ID)
}

// StartAll 启动所有配置了凭证的智能体连接(进程启动时调用)
func (s *Supervisor) StartAll(agents []*model.Agent) {
	for _, agent := range agents {
		s.Sync(agent)
	}
}

// StopAll 停止全部连接(关停流程调用)
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.pollers {
		s.stopLocked(id)
	}
	logx.Info("All bot pollers stopped")
}

// Running 返回当前持有连接的智能体数量
func (s *Supervisor) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pollers)
}

// stopLocked 停止并移除指定智能体的轮询器,调用方必须持锁
func (s *Supervisor) stopLocked(agentID string) {
	p, ok := s.pollers[agentID]
	if !ok {
		return
	}

	p.stop(stopTimeout)
	delete(s.pollers, agentID)
	delete(s.tokens, agentID)
}
