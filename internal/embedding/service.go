package embedding

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

// ErrUnavailable Embedding 后端不可用(限流、鉴权失败、网络错误)
// 调用方据此决定跳过单个文档还是中止整个请求，而不是直接崩溃
var ErrUnavailable = errors.New("embedding backend unavailable")

// Service 向量嵌入服务
type Service struct {
	embedder embedding.Embedder
	model    string      // 当前使用的模型标识
	cache    *RedisCache // 可选，缓存 embedding 结果
}

// Config Embedding 配置
type Config struct {
	APIKey  string
	BaseURL string
	Model   string // 如 "text-embedding-ada-002"
}

// NewService 创建 Embedding 服务(复用 Eino)
func NewService(cfg *Config, cache *RedisCache) (*Service, error) {
	embedder, err := openai.NewEmbedder(context.Background(), &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &Service{
		embedder: embedder,
		model:    cfg.Model,
		cache:    cache,
	}, nil
}

// Embed 获取文本的向量表示
// 同一 provider+model 配置下，维度固定
func (s *Service) Embed(ctx context.Context, text string) ([]float64, error) {
	// 1. 先检查 Redis 缓存
	if s.cache != nil {
		cacheKey := s.calculateCacheKey(text)
		cached, err := s.cache.GetEmbedding(ctx, cacheKey)
		if err == nil && cached != nil {
			logx.Debug("Embedding cache hit: key=%s", cacheKey[:16])
			return cached, nil
		}
	}

	// 2. 调用 Eino Embedder
	vectors, err := s.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty embedding result", ErrUnavailable)
	}

	result := vectors[0]

	// 3. 缓存结果
	if s.cache != nil {
		cacheKey := s.calculateCacheKey(text)
		if err := s.cache.SetEmbedding(ctx, cacheKey, result); err != nil {
			logx.Warn("Failed to cache embedding: %v", err)
		}
	}

	return result, nil
}

// GetModel 获取当前模型标识
func (s *Service) GetModel() string {
	return s.model
}

// calculateCacheKey 计算缓存键
func (s *Service) calculateCacheKey(text string) string {
	hash := sha256.Sum256([]byte(s.model + ":" + text))
	return fmt.Sprintf("emb:%x", hash[:16])
}
