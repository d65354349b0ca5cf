package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"cnb.cool/zhiqiangwang/pkg/logx"

	"github.com/macmann/mealmebase/internal/vectorstore"
)

// ErrInvalidDocument 上传文档未通过校验(如 JSON 解析失败)
// 出现该错误时整个批次在写入前被拒绝
var ErrInvalidDocument = errors.New("invalid document")

// Embedder 向量嵌入接口(避免循环依赖)
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// File 一个待入库的原始文件
type File struct {
	Name    string
	Content []byte
}

// Pipeline 文档入库流水线
// 先整批归一化校验，再逐个嵌入写库；校验失败整批拒绝，
// 写入途中失败则中止并上报，已写入的文档保留(不回滚)
type Pipeline struct {
	store    vectorstore.Store
	embedder Embedder
}

// NewPipeline 创建文档入库流水线
func NewPipeline(store vectorstore.Store, embedder Embedder) *Pipeline {
	return &Pipeline{
		store:    store,
		embedder: embedder,
	}
}

// Ingest 将一批文件写入指定集合
func (p *Pipeline) Ingest(ctx context.Context, collection string, files []File) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no files provided", ErrInvalidDocument)
	}

	// 1. 整批归一化，任何一个文件校验失败都在写入前拒绝整个请求
	type document struct {
		name string
		text string
	}

	docs := make([]document, 0, len(files))
	for _, f := range files {
		text, err := normalize(f)
		if err != nil {
			return fmt.Errorf("file %s: %w", f.Name, err)
		}

		name := f.Name
		if name == "" {
			name = "Document"
		}

		docs = append(docs, document{name: name, text: text})
	}

	// 2. 确保集合存在
	if err := p.store.EnsureCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	// 3. 逐个嵌入并写入，单个文档写入是原子的
	for i, doc := range docs {
		vector, err := p.embedder.Embed(ctx, doc.text)
		if err != nil {
			return fmt.Errorf("failed to embed document %s (%d/%d): %w", doc.name, i+1, len(docs), err)
		}

		id := vectorstore.NewPointID()
		if err := p.store.Upsert(ctx, collection, id, vector, vectorstore.Payload{
			Text: doc.text,
			Name: doc.name,
		}); err != nil {
			return fmt.Errorf("failed to store document %s (%d/%d): %w", doc.name, i+1, len(docs), err)
		}

		logx.Info("Ingested document %s into %s, point_id %d, chars %d", doc.name, collection, id, len(doc.text))
	}

	return nil
}

// normalize 按文件类型归一化为纯文本
func normalize(f File) (string, error) {
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".pdf":
		text, err := extractPDFText(f.Content)
		if err != nil {
			return "", fmt.Errorf("%w: pdf extraction failed: %v", ErrInvalidDocument, err)
		}
		return text, nil
	case ".json":
		return normalizeJSON(f.Content)
	default:
		// CSV 和纯文本原样入库
		return string(f.Content), nil
	}
}

// normalizeJSON 解析后重新序列化，格式非法视为硬错误
func normalizeJSON(content []byte) (string, error) {
	var value any
	if err := json.Unmarshal(content, &value); err != nil {
		return "", fmt.Errorf("%w: malformed JSON: %v", ErrInvalidDocument, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: failed to reserialize JSON: %v", ErrInvalidDocument, err)
	}

	return string(data), nil
}
