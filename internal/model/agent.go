package model

import "time"

// Agent RAG 智能体模型
// 每个智能体拥有独立的系统提示词、采样参数和专属向量集合
type Agent struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string  `gorm:"size:255" json:"name"`
	Instruction string  `gorm:"type:text" json:"instruction"`              // 系统提示词，为空时使用通用默认值
	Temperature float64 `gorm:"default:0.7" json:"temperature"`            // 生成随机性
	TopP        float64 `gorm:"default:1.0" json:"top_p"`                  // 核采样截断
	TopK        int     `gorm:"default:3" json:"top_k"`                    // 检索文档条数
	Collection  string  `gorm:"uniqueIndex;size:128" json:"collection"`    // 专属向量集合名，由 ID 派生，创建后不可变
	BotToken    string  `gorm:"size:128" json:"bot_token,omitempty"`       // Telegram Bot 凭证，非空时启动轮询连接
}

// TableName 指定表名
func (Agent) TableName() string {
	return "agents"
}
