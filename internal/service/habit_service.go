package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/habitlog/internal/db"
	"gorm.io/gorm"
)

// MaxHabitNameLength 习惯名称的最大字符数
const MaxHabitNameLength = 100

var (
	// ErrHabitNotFound 在指定习惯不存在或不属于当前分区时返回，两者不做区分
	ErrHabitNotFound = errors.New("habit not found")
	// ErrEmptyName 名称去除空白后为空
	ErrEmptyName = errors.New("habit name cannot be empty")
	// ErrNameTooLong 名称超过 MaxHabitNameLength
	ErrNameTooLong = errors.New("habit name is too long")
	// ErrDuplicateName 同一分区内已存在忽略大小写相同的名称
	ErrDuplicateName = errors.New("habit name already exists")
	// ErrInvalidScope 未指定归属分区
	ErrInvalidScope = errors.New("invalid habit scope")
)

// HabitService 负责 Habit 数据的增删查
// 所有读写都限定在调用方的分区内，跨分区访问一律视为不存在
type HabitService struct {
	db *gorm.DB
}

// HabitInput 定义创建习惯时可配置字段
type HabitInput struct {
	Name        string
	Description string
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb}
}

// List 返回分区内的习惯，按创建时间先后排列
func (s *HabitService) List(scope db.Scope) ([]db.Habit, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}

	var habits []db.Habit
	if err := s.db.Where("scope_key = ?", scope.Key()).
		Order("created_at ASC, id ASC").
		Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

// Get 根据 ID 获取分区内的习惯
func (s *HabitService) Get(id uint, scope db.Scope) (*db.Habit, error) {
	if !scope.Valid() {
		return nil, ErrHabitNotFound
	}

	var habit db.Habit
	if err := s.db.Where("id = ? AND scope_key = ?", id, scope.Key()).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Create 新建习惯，名称在分区内忽略大小写唯一
func (s *HabitService) Create(scope db.Scope, input HabitInput, now time.Time) (*db.Habit, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}

	name, err := normalizeHabitName(input.Name)
	if err != nil {
		return nil, err
	}
	nameKey := db.HabitNameKey(name)

	var existing int64
	if err := s.db.Model(&db.Habit{}).
		Where("scope_key = ? AND name_key = ?", scope.Key(), nameKey).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check habit name: %w", err)
	}
	if existing > 0 {
		return nil, ErrDuplicateName
	}

	habit := db.Habit{
		CreatedAt:   now,
		UpdatedAt:   now,
		ScopeKey:    scope.Key(),
		Name:        name,
		NameKey:     nameKey,
		Description: strings.TrimSpace(input.Description),
	}
	if userID, ok := scope.UserID(); ok {
		habit.UserID = &userID
	}

	if err := s.db.Create(&habit).Error; err != nil {
		// 并发创建同名习惯时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return &habit, nil
}

// Delete 在同一事务内删除习惯及其全部打卡记录
func (s *HabitService) Delete(id uint, scope db.Scope) error {
	if !scope.Valid() {
		return ErrHabitNotFound
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var habit db.Habit
		if err := tx.Where("id = ? AND scope_key = ?", id, scope.Key()).First(&habit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHabitNotFound
			}
			return fmt.Errorf("find habit: %w", err)
		}

		if err := tx.Where("habit_id = ?", habit.ID).Delete(&db.HabitLog{}).Error; err != nil {
			return fmt.Errorf("delete habit logs: %w", err)
		}
		if err := tx.Delete(&habit).Error; err != nil {
			return fmt.Errorf("delete habit: %w", err)
		}
		return nil
	})
}

func normalizeHabitName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxHabitNameLength {
		return "", fmt.Errorf("%w: max %d characters", ErrNameTooLong, MaxHabitNameLength)
	}
	return name, nil
}
