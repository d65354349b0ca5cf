package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/macmann/mealmebase/internal/model"
	"github.com/macmann/mealmebase/internal/vectorstore"
)

// ErrNotFound 智能体不存在
var ErrNotFound = errors.New("agent not found")

// 新建智能体的默认采样与检索参数
const (
	defaultTemperature = 0.7
	defaultTopP        = 1.0
	defaultTopK        = 3
)

// CreateParams 创建智能体的参数
type CreateParams struct {
	Name        string
	Instruction string
	BotToken    string
}

// UpdateParams 部分更新参数，nil 字段保持原值
type UpdateParams struct {
	Name        *string
	Instruction *string
	Temperature *float64
	TopP        *float64
	TopK        *int
	BotToken    *string
}

// Registry 智能体注册表
// 内存映射是权威数据，数据库仅做异步落盘；
// 创建时同步在向量后端建好专属集合
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*model.Agent
	db     *gorm.DB
	store  vectorstore.Store
}

// NewRegistry 创建注册表并从数据库恢复已有智能体
// 数据库不可读时从空表开始，不阻塞启动
func NewRegistry(db *gorm.DB, store vectorstore.Store) *Registry {
	r := &Registry{
		agents: make(map[string]*model.Agent),
		db:     db,
		store:  store,
	}

	if db != nil {
		var rows []model.Agent
		if err := db.Find(&rows).Error; err != nil {
			logx.Warn("Failed to load agents, starting empty: %v", err)
		} else {
			for i := range rows {
				agent := rows[i]
				r.agents[agent.ID] = &agent
			}
			if len(rows) > 0 {
				logx.Info("Loaded %d agents", len(rows))
			}
		}
	}

	return r
}

// Create 创建智能体并在向量后端建好专属集合
func (r *Registry) Create(ctx context.Context, params CreateParams) (*model.Agent, error) {
	id := uuid.New().String()

	agent := &model.Agent{
		ID:          id,
		Name:        params.Name,
		Instruction: params.Instruction,
		Temperature: defaultTemperature,
		TopP:        defaultTopP,
		TopK:        defaultTopK,
		Collection:  CollectionName(id),
		BotToken:    params.BotToken,
	}

	// 集合先建好再登记,避免出现指向不存在集合的智能体
	if err := r.store.EnsureCollection(ctx, agent.Collection); err != nil {
		return nil, fmt.Errorf("failed to provision collection %s: %w", agent.Collection, err)
	}

	r.mu.Lock()
	r.agents[agent.ID] = agent
	snapshot := *agent
	r.mu.Unlock()

	r.persist(&snapshot)

	logx.Info("Agent %s created, collection %s", agent.ID, agent.Collection)
	return &snapshot, nil
}

// Update 部分更新智能体，未提供的字段保持不变
func (r *Registry) Update(id string, params UpdateParams) (*model.Agent, error) {
	r.mu.Lock()

	agent, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotFound
	}

	if params.Name != nil {
		agent.Name = *params.Name
	}
	if params.Instruction != nil {
		agent.Instruction = *params.Instruction
	}
	if params.Temperature != nil {
		agent.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		agent.TopP = *params.TopP
	}
	if params.TopK != nil {
		agent.TopK = *params.TopK
	}
	if params.BotToken != nil {
		agent.BotToken = *params.BotToken
	}

	snapshot := *agent
	r.mu.Unlock()

	r.persist(&snapshot)

	return &snapshot, nil
}

// Get 按 ID 查询智能体
func (r *Registry) Get(id string) (*model.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, ErrNotFound
	}

	snapshot := *agent
	return &snapshot, nil
}

// List 返回全部智能体，按名称排序
func (r *Registry) List() []*model.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		snapshot := *agent
		out = append(out, &snapshot)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})

	return out
}

// ForceFlush 同步刷写全部智能体到数据库(测试钩子)
func (r *Registry) ForceFlush() error {
	if r.db == nil {
		return nil
	}

	r.mu.RLock()
	snapshots := make([]model.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		snapshots = append(snapshots, *agent)
	}
	r.mu.RUnlock()

	for i := range snapshots {
		if err := r.db.Save(&snapshots[i]).Error; err != nil {
			return fmt.Errorf("failed to flush agent %s: %w", snapshots[i].ID, err)
		}
	}

	return nil
}

// persist 异步落库,失败只记录日志
func (r *Registry) persist(agent *model.Agent) {
	if r.db == nil {
		return
	}

	go func() {
		if err := r.db.Save(agent).Error; err != nil {
			logx.Warn("Failed to persist agent %s: %v", agent.ID, err)
		}
	}()
}

// CollectionName 由智能体 ID 派生专属集合名
func CollectionName(id string) string {
	return "agent_" + strings.ReplaceAll(id, "-", "")
}
