package model

import "time"

// BotTurn Bot 渠道对话历史记录
// 每条记录是某个 (智能体, 外部会话) 桶内的一轮消息，桶内最多保留最近 5 条
type BotTurn struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	BucketKey string `gorm:"index;size:191" json:"bucket_key"` // agentID|chatID
	Seq       int    `json:"seq"`                              // 桶内顺序
	Role      string `gorm:"size:16" json:"role"`              // user | bot
	Text      string `gorm:"type:text" json:"text"`
}

// TableName 指定表名
func (BotTurn) TableName() string {
	return "bot_turns"
}
