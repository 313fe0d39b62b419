package model

import "time"

// LearningEventLog 已应用的学习事件流水，与状态变更在同一事务中写入
type LearningEventLog struct {
	UUIDBase
	UserID     string    `gorm:"size:64;not null;index:idx_learning_event_logs_user,priority:1" json:"userId"`
	EventType  string    `gorm:"size:32;not null" json:"eventType"`
	Payload    string    `gorm:"type:text" json:"payload"`
	XPEarned   int       `gorm:"not null" json:"xpEarned"`
	OccurredAt time.Time `gorm:"not null;index:idx_learning_event_logs_user,priority:2" json:"occurredAt"`
}

func (LearningEventLog) TableName() string {
	return "learning_event_logs"
}
