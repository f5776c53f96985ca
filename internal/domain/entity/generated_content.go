package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContentStatus 生成记录状态
type ContentStatus string

const (
	ContentStatusCompleted ContentStatus = "completed"
	ContentStatusFailed    ContentStatus = "failed"
)

// GeneratedContent 生成结果记录
type GeneratedContent struct {
	ID     string        `json:"id" gorm:"type:uuid;primaryKey"`
	UserID string        `json:"user_id" gorm:"type:uuid;index:idx_generated_contents_user_created,priority:1;not null"`
	Status ContentStatus `json:"status" gorm:"type:varchar(16);not null"`
	Topic  string        `json:"topic" gorm:"type:varchar(255)"`

	Request  datatypes.JSON `json:"request" gorm:"type:jsonb"`
	Outline  datatypes.JSON `json:"outline" gorm:"type:jsonb"`
	Content  string         `json:"content" gorm:"type:text"`
	Metadata datatypes.JSON `json:"metadata" gorm:"type:jsonb"`

	ErrorMessage string `json:"error_message,omitempty" gorm:"type:text"`
	// Cost 本条记录实际扣减的额度，失败记录为 0
	Cost int `json:"cost" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_generated_contents_user_created,priority:2"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (GeneratedContent) TableName() string {
	return "generated_contents"
}

// BeforeCreate 补齐主键
func (c *GeneratedContent) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// IsCompleted 是否成功生成
func (c *GeneratedContent) IsCompleted() bool {
	return c.Status == ContentStatusCompleted
}
