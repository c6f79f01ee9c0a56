package model

import "time"

// Turn 是会话中的一轮问答，只用于为下一次 LLM 调用构造简短上下文。
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation 是一次问答的审计记录，写入 MySQL。
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"type:varchar(64);index;not null" json:"sessionId"`
	Intent    string    `gorm:"type:varchar(32)" json:"intent"`
	Strategy  string    `gorm:"type:varchar(64);index" json:"strategy"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}
