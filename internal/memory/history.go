package memory

import (
	"fmt"
	"sync"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"gorm.io/gorm"

	"github.com/macmann/mealmebase/internal/model"
)

// Window 每个会话桶保留的最近消息条数
const Window = 5

// 消息角色
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Turn 会话中的一轮消息
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Store 按桶组织的有界会话历史
// 内存状态是权威数据；传入 db 时每次追加后异步写穿到 bot_turns 表，
// 写库失败仅记录日志，不影响内存状态
type Store struct {
	mu      sync.Mutex
	buckets map[string][]Turn
	db      *gorm.DB // 为 nil 时不持久化(仪表盘渠道)
}

// NewStore 创建会话历史存储
// db 非空时在启动阶段从数据库恢复各桶的历史
func NewStore(db *gorm.DB) *Store {
	s := &Store{
		buckets: make(map[string][]Turn),
		db:      db,
	}

	if db != nil {
		s.load()
	}

	return s
}

// Key 构造会话桶键
func Key(agentID, sessionKey string) string {
	return agentID + "|" + sessionKey
}

// Append 追加一轮消息并截断到最近 Window 条
// 单把锁串行化并发追加，避免同一外部会话的并发消息互相覆盖
func (s *Store) Append(bucketKey, role, text string) {
	s.mu.Lock()

	turns := append(s.buckets[bucketKey], Turn{Role: role, Text: text})
	if len(turns) > Window {
		turns = turns[len(turns)-Window:]
	}
	s.buckets[bucketKey] = turns

	var snapshot []Turn
	if s.db != nil {
		snapshot = make([]Turn, len(turns))
		copy(snapshot, turns)
	}

	s.mu.Unlock()

	// 异步写穿，失败只记录日志
	if s.db != nil {
		go func() {
			if err := s.flushBucket(bucketKey, snapshot); err != nil {
				logx.Warn("Failed to persist history bucket %s: %v", bucketKey, err)
			}
		}()
	}
}

// Recent 返回桶内消息(从旧到新，最多 Window 条)
func (s *Store) Recent(bucketKey string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.buckets[bucketKey]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// ForceFlush 同步刷写全部桶到数据库(测试钩子)
func (s *Store) ForceFlush() error {
	if s.db == nil {
		return nil
	}

	s.mu.Lock()
	snapshot := make(map[string][]Turn, len(s.buckets))
	for key, turns := range s.buckets {
		copied := make([]Turn, len(turns))
		copy(copied, turns)
		snapshot[key] = copied
	}
	s.mu.Unlock()

	for key, turns := range snapshot {
		if err := s.flushBucket(key, turns); err != nil {
			return fmt.Errorf("failed to flush bucket %s: %w", key, err)
		}
	}

	return nil
}

// flushBucket 以整桶替换的方式落库
func (s *Store) flushBucket(bucketKey string, turns []Turn) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bucket_key = ?", bucketKey).Delete(&model.BotTurn{}).Error; err != nil {
			return err
		}

		for i, turn := range turns {
			row := &model.BotTurn{
				BucketKey: bucketKey,
				Seq:       i,
				Role:      turn.Role,
				Text:      turn.Text,
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// load 启动时从数据库恢复历史
// 文件缺失或数据损坏时从空表开始，不阻塞启动
func (s *Store) load() {
	var rows []model.BotTurn
	if err := s.db.Order("bucket_key, seq").Find(&rows).Error; err != nil {
		logx.Warn("Failed to load history, starting empty: %v", err)
		return
	}

	for _, row := range rows {
		turns := append(s.buckets[row.BucketKey], Turn{Role: row.Role, Text: row.Text})
		if len(turns) > Window {
			turns = turns[len(turns)-Window:]
		}
		s.buckets[row.BucketKey] = turns
	}

	if len(rows) > 0 {
		logx.Info("Loaded %d history turns across %d buckets", len(rows), len(s.buckets))
	}
}
