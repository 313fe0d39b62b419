package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VersionedModel 进度状态行的公共字段，Version 用于乐观锁
type VersionedModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	Version   int       `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// UUIDBase 只追加的日志行，主键为 uuid
type UUIDBase struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b *UUIDBase) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return
}

func GenerateUUID() string {
	return uuid.New().String()
}
