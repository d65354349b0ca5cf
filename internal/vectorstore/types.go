package vectorstore

import "context"

// Payload 点位负载，存储文档原文与来源文件名
type Payload struct {
	Text string `json:"text"`
	Name string `json:"name"`
}

// Point 集合中的一个点位
type Point struct {
	ID      uint64  `json:"id"`
	Payload Payload `json:"payload"`
}

// ScoredPoint 相似度检索结果
type ScoredPoint struct {
	ID      uint64  `json:"id"`
	Score   float32 `json:"score"`
	Payload Payload `json:"payload"`
}

// Store 向量存储接口
type Store interface {
	// EnsureCollection 幂等创建集合，已存在时静默成功
	EnsureCollection(ctx context.Context, name string) error

	// Upsert 插入或替换一个点位
	Upsert(ctx context.Context, collection string, id uint64, vector []float64, payload Payload) error

	// Search 按相似度降序返回最多 limit 个点位，空集合返回空切片
	Search(ctx context.Context, collection string, vector []float64, limit int) ([]ScoredPoint, error)

	// ScrollAll 通过游标分页取回集合中的全部点位
	ScrollAll(ctx context.Context, collection string) ([]Point, error)

	// Delete 按 ID 删除点位，删除不存在的 ID 不报错
	Delete(ctx context.Context, collection string, id uint64) error
}
