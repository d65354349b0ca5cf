package memory

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/macmann/mealmebase/internal/model"
)

func openTestDB(t *testing.T, path string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.BotTurn{}))
	return db
}

func TestAppendKeepsLastFiveTurns(t *testing.T) {
	s := NewStore(nil)
	key := Key("agent-1", "chat-42")

	for i := 1; i <= 6; i++ {
		s.Append(key, RoleUser, fmt.Sprintf("message %d", i))
	}

	turns := s.Recent(key)
	require.Len(t, turns, Window)
	assert.Equal(t, "message 2", turns[0].Text)
	assert.Equal(t, "message 6", turns[4].Text)
}

func TestRecentReturnsOldestFirst(t *testing.T) {
	s := NewStore(nil)
	key := Key("agent-1", "chat-42")

	s.Append(key, RoleUser, "hello")
	s.Append(key, RoleBot, "hi there")

	turns := s.Recent(key)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Text)
	assert.Equal(t, RoleBot, turns[1].Role)
}

func TestBucketsAreIsolated(t *testing.T) {
	s := NewStore(nil)

	s.Append(Key("agent-1", "chat-1"), RoleUser, "first chat")
	s.Append(Key("agent-1", "chat-2"), RoleUser, "second chat")
	s.Append(Key("agent-2", "chat-1"), RoleUser, "other agent")

	assert.Len(t, s.Recent(Key("agent-1", "chat-1")), 1)
	assert.Len(t, s.Recent(Key("agent-1", "chat-2")), 1)
	assert.Equal(t, "other agent", s.Recent(Key("agent-2", "chat-1"))[0].Text)
	assert.Empty(t, s.Recent(Key("agent-3", "chat-1")))
}

func TestConcurrentAppendsStayBounded(t *testing.T) {
	s := NewStore(nil)
	key := Key("agent-1", "busy-chat")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Append(key, RoleUser, fmt.Sprintf("burst %d", n))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Recent(key), Window)
}

func TestFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db := openTestDB(t, path)

	s := NewStore(db)
	key := Key("agent-1", "chat-42")
	for i := 1; i <= 6; i++ {
		s.Append(key, RoleUser, fmt.Sprintf("message %d", i))
	}
	s.Append(Key("agent-2", "chat-7"), RoleBot, "standalone reply")
	require.NoError(t, s.ForceFlush())

	reloaded := NewStore(db)

	turns := reloaded.Recent(key)
	require.Len(t, turns, Window)
	assert.Equal(t, "message 2", turns[0].Text)
	assert.Equal(t, "message 6", turns[4].Text)

	other := reloaded.Recent(Key("agent-2", "chat-7"))
	require.Len(t, other, 1)
	assert.Equal(t, RoleBot, other[0].Role)
}

func TestFlushReplacesBucketRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db := openTestDB(t, path)

	s := NewStore(db)
	key := Key("agent-1", "chat-42")
	for i := 1; i <= 8; i++ {
		s.Append(key, RoleUser, fmt.Sprintf("message %d", i))
	}
	require.NoError(t, s.ForceFlush())

	var count int64
	require.NoError(t, db.Model(&model.BotTurn{}).Where("bucket_key = ?", key).Count(&count).Error)
	assert.EqualValues(t, Window, count)
}
