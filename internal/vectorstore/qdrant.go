package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/qdrant/go-client/qdrant"
)

const scrollPageSize = 256

// QdrantStore 基于 Qdrant 的向量存储实现
type QdrantStore struct {
	client    *qdrant.Client
	dimension int
	timeout   time.Duration
}

// QdrantOptions Qdrant 连接配置
type QdrantOptions struct {
	URL       string // host:port (gRPC)
	APIKey    string
	Dimension int           // 向量维度，集合创建时固定
	Timeout   time.Duration // 单次调用超时
}

// NewQdrantStore 创建 Qdrant 向量存储
func NewQdrantStore(opts QdrantOptions) (*QdrantStore, error) {
	if opts.URL == "" {
		opts.URL = "localhost:6334"
	}
	if opts.Dimension <= 0 {
		opts.Dimension = 1536
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	// 解析 URL，分离主机和端口
	// Qdrant 客户端的 Host 字段只接受主机名，端口需要单独设置
	host, portStr, err := net.SplitHostPort(opts.URL)
	if err != nil {
		host = opts.URL
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6334
	}

	clientConfig := &qdrant.Config{
		Host: host,
		Port: port,
	}
	if opts.APIKey != "" {
		clientConfig.APIKey = opts.APIKey
	}

	client, err := qdrant.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	logx.Info("Qdrant store initialized, url %s, dimension %d", opts.URL, opts.Dimension)

	return &QdrantStore{
		client:    client,
		dimension: opts.Dimension,
		timeout:   opts.Timeout,
	}, nil
}

// EnsureCollection 确保集合存在(幂等)
// 距离度量固定为余弦相似度，维度由配置决定；真实后端错误向上传播
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	logx.Info("Created vector collection %s, dimension %d", name, s.dimension)
	return nil
}

// Upsert 插入或替换点位
func (s *QdrantStore) Upsert(ctx context.Context, collection string, id uint64, vector []float64, payload Payload) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(id),
				Vectors: qdrant.NewVectors(toFloat32(vector)...),
				Payload: qdrant.NewValueMap(map[string]any{
					"text": payload.Text,
					"name": payload.Name,
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point %d into %s: %w", id, collection, err)
	}

	return nil
}

// Search 相似度检索，按得分降序返回
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float64, limit int) ([]ScoredPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(toFloat32(vector)...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", collection, err)
	}

	points := make([]ScoredPoint, 0, len(results))
	for _, r := range results {
		points = append(points, ScoredPoint{
			ID:      r.GetId().GetNum(),
			Score:   r.GetScore(),
			Payload: payloadFromValues(r.GetPayload()),
		})
	}

	return points, nil
}

// ScrollAll 通过游标分页取回集合全部点位
// 服务端在每页返回下一页游标，游标缺失时迭代结束
func (s *QdrantStore) ScrollAll(ctx context.Context, collection string) ([]Point, error) {
	var points []Point
	var offset *qdrant.PointId

	for {
		page, next, err := s.scrollPage(ctx, collection, offset)
		if err != nil {
			return nil, err
		}
		points = append(points, page...)

		if next == nil {
			return points, nil
		}
		offset = next
	}
}

// scrollPage 取回一页点位及下一页游标
func (s *QdrantStore) scrollPage(ctx context.Context, collection string, offset *qdrant.PointId) ([]Point, *qdrant.PointId, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if offset != nil {
		req.Offset = offset
	}

	resp, err := s.client.GetPointsClient().Scroll(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scroll collection %s: %w", collection, err)
	}

	page := make([]Point, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		page = append(page, Point{
			ID:      r.GetId().GetNum(),
			Payload: payloadFromValues(r.GetPayload()),
		})
	}

	return page, resp.GetNextPageOffset(), nil
}

// Delete 按 ID 删除点位(幂等)
func (s *QdrantStore) Delete(ctx context.Context, collection string, id uint64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete point %d from %s: %w", id, collection, err)
	}

	return nil
}

// payloadFromValues 从 Qdrant 负载中提取文档字段
func payloadFromValues(values map[string]*qdrant.Value) Payload {
	p := Payload{}
	if v, ok := values["text"]; ok {
		p.Text = v.GetStringValue()
	}
	if v, ok := values["name"]; ok {
		p.Name = v.GetStringValue()
	}
	if p.Name == "" {
		p.Name = "Document"
	}
	return p
}

// toFloat32 转换向量精度(Embedding 返回 float64，Qdrant 存储 float32)
func toFloat32(vector []float64) []float32 {
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}
	return out
}
