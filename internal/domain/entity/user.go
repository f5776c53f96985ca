// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlanType 套餐类型
type PlanType string

const (
	PlanTypeFree       PlanType = "free"
	PlanTypePro        PlanType = "pro"
	PlanTypeEnterprise PlanType = "enterprise"
)

// User 用户实体，持有生成额度计数
type User struct {
	ID       string   `json:"id" gorm:"type:uuid;primaryKey"`
	Email    string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name     string   `json:"name" gorm:"type:varchar(128)"`
	PlanType PlanType `json:"plan_type" gorm:"type:varchar(32);not null;default:'free'"`

	// RequestsUsed 本周期已消耗的额度
	RequestsUsed int `json:"requests_used" gorm:"not null;default:0"`
	// RequestsLimit 本周期套餐额度
	RequestsLimit int `json:"requests_limit" gorm:"not null;default:0"`
	// FlexyRequests 补充额度池，不随周期清零
	FlexyRequests int `json:"flexy_requests" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// BeforeCreate 补齐主键
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// NewUser 创建新用户
func NewUser(email, name string, plan PlanType, limit int) *User {
	return &User{
		Email:         email,
		Name:          name,
		PlanType:      plan,
		RequestsLimit: limit,
	}
}

// TotalAllowance 套餐额度与补充额度之和
func (u *User) TotalAllowance() int {
	return u.RequestsLimit + u.FlexyRequests
}

// Remaining 剩余额度，最小为 0
func (u *User) Remaining() int {
	r := u.TotalAllowance() - u.RequestsUsed
	if r < 0 {
		return 0
	}
	return r
}

// CanAfford 判断能否承担 cost 的扣减
func (u *User) CanAfford(cost int) bool {
	return u.RequestsUsed+cost <= u.TotalAllowance()
}

// Debit 在内存中按“先补充额度、后套餐额度”的顺序扣减
func (u *User) Debit(cost int) {
	if cost <= 0 {
		return
	}
	if u.FlexyRequests >= cost {
		u.FlexyRequests -= cost
		return
	}
	u.RequestsUsed += cost - u.FlexyRequests
	u.FlexyRequests = 0
}
