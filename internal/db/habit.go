package db

import (
	"strings"
	"time"

	"github.com/habitlog/internal/calendar"
)

// Habit 定义了习惯模型
// ScopeKey + NameKey 采用唯一索引：同一分区内名称去空格、忽略大小写后不可重复
// UserID 为空表示匿名共享分区，ScopeKey 固定为 anonymous，避免 NULL 绕过唯一索引
// Description 为可选的 markdown 备注，不参与唯一性
type Habit struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      *uint  `gorm:"index"`
	User        *User  `gorm:"constraint:OnDelete:CASCADE"`
	ScopeKey    string `gorm:"size:32;not null;uniqueIndex:idx_habit_scope_name"`
	Name        string `gorm:"size:100;not null"`
	NameKey     string `gorm:"size:100;not null;uniqueIndex:idx_habit_scope_name"`
	Description string
}

// Scope 还原习惯所在分区
func (h Habit) Scope() Scope {
	if h.UserID == nil {
		return Anonymous()
	}
	return Owned(*h.UserID)
}

// HabitNameKey 归一化名称，用于唯一性比较
func HabitNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// HabitLog 记录习惯打卡日志
// Habit + LogDate 采用唯一索引，保证同一天最多一条；删除习惯时级联删除
// 没有软删除字段：取消打卡即物理删除，否则会与唯一索引冲突
type HabitLog struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	HabitID   uint          `gorm:"not null;index;uniqueIndex:idx_habit_log_unique"`
	Habit     *Habit        `gorm:"constraint:OnDelete:CASCADE"`
	LogDate   calendar.Date `gorm:"not null;uniqueIndex:idx_habit_log_unique"`
}

// TableName 重写确保唯一索引作用到 habit_id + log_date
func (HabitLog) TableName() string {
	return "habit_logs"
}
