package retrieval

import (
	"context"
	"strings"

	"cnb.cool/zhiqiangwang/pkg/logx"

	"github.com/macmann/mealmebase/internal/vectorstore"
)

const defaultTopK = 3

// Embedder 向量嵌入接口(避免循环依赖)
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Retriever 知识检索器
// 检索是尽力而为的：任何失败都降级为空上下文，对话继续进行
type Retriever struct {
	store    vectorstore.Store
	embedder Embedder
}

// NewRetriever 创建知识检索器
func NewRetriever(store vectorstore.Store, embedder Embedder) *Retriever {
	return &Retriever{
		store:    store,
		embedder: embedder,
	}
}

// Retrieve 检索相关文档并拼接为上下文
// 按相似度排序取前 topK 条，正文以换行符连接；失败时返回空串而不是错误
func (r *Retriever) Retrieve(ctx context.Context, collection, query string, topK int) string {
	if topK <= 0 {
		topK = defaultTopK
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		logx.Warn("Retrieval degraded, failed to embed query: %v", err)
		return ""
	}

	results, err := r.store.Search(ctx, collection, queryVector, topK)
	if err != nil {
		logx.Warn("Retrieval degraded, search failed for %s: %v", collection, err)
		return ""
	}

	if len(results) == 0 {
		return ""
	}

	texts := make([]string, 0, len(results))
	for _, res := range results {
		if res.Payload.Text == "" {
			continue
		}
		texts = append(texts, res.Payload.Text)
	}

	logx.Debug("Retrieved %d documents from %s for query", len(texts), collection)
	return strings.Join(texts, "\n")
}
