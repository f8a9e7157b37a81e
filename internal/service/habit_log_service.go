package service

import (
	"errors"
	"fmt"

	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/stats"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// ErrInvalidDate 日期缺失或不合法
	ErrInvalidDate = errors.New("invalid date")
	// ErrFutureDate 日期晚于今天，errors.Is(err, ErrInvalidDate) 同样成立
	ErrFutureDate = fmt.Errorf("%w: date is in the future", ErrInvalidDate)
)

// ToggleResult 描述一次打卡切换的结果
type ToggleResult int

const (
	ToggleCreated ToggleResult = iota + 1
	ToggleDeleted
)

func (r ToggleResult) String() string {
	switch r {
	case ToggleCreated:
		return "created"
	case ToggleDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// HabitLogService 负责打卡与统计逻辑
// 调用方需先通过 HabitService.Get 校验习惯归属
type HabitLogService struct {
	db *gorm.DB
}

// NewHabitLogService 构造 HabitLogService
func NewHabitLogService(gdb *gorm.DB) *HabitLogService {
	return &HabitLogService{db: gdb}
}

// Toggle 是打卡记录唯一的写入路径：不存在则创建，存在则删除。
// 插入依赖 (habit_id, log_date) 唯一索引判重，并发下另一请求已插入时转为删除。
func (s *HabitLogService) Toggle(habitID uint, date, today calendar.Date) (ToggleResult, error) {
	if date.IsZero() {
		return 0, ErrInvalidDate
	}
	if date.After(today) {
		return 0, ErrFutureDate
	}

	// 唯一索引冲突是取消打卡的正常路径，不输出 SQL 错误日志
	quiet := s.db.Session(&gorm.Session{Logger: s.db.Logger.LogMode(gormlogger.Silent)})
	entry := db.HabitLog{HabitID: habitID, LogDate: date}
	err := quiet.Create(&entry).Error
	if err == nil {
		return ToggleCreated, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, fmt.Errorf("create habit log: %w", err)
	}

	if err := s.db.Where("habit_id = ? AND log_date = ?", habitID, date).
		Delete(&db.HabitLog{}).Error; err != nil {
		return 0, fmt.Errorf("delete habit log: %w", err)
	}
	return ToggleDeleted, nil
}

// IsDoneOn 判断某天是否已打卡
func (s *HabitLogService) IsDoneOn(habitID uint, date calendar.Date) (bool, error) {
	var count int64
	if err := s.db.Model(&db.HabitLog{}).
		Where("habit_id = ? AND log_date = ?", habitID, date).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check habit log: %w", err)
	}
	return count > 0, nil
}

// CountAll 返回全部打卡次数
func (s *HabitLogService) CountAll(habitID uint) (int, error) {
	var count int64
	if err := s.db.Model(&db.HabitLog{}).
		Where("habit_id = ?", habitID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count habit logs: %w", err)
	}
	return int(count), nil
}

// DatesDescending 返回全部打卡日期，最近的在前
func (s *HabitLogService) DatesDescending(habitID uint) ([]calendar.Date, error) {
	var logs []db.HabitLog
	if err := s.db.Select("log_date").
		Where("habit_id = ?", habitID).
		Order("log_date DESC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list habit log dates: %w", err)
	}
	return logDates(logs), nil
}

// DoneSet 返回 [from, to] 区间内已打卡的日期集合
func (s *HabitLogService) DoneSet(habitID uint, from, to calendar.Date) (map[calendar.Date]bool, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: end before start")
	}

	var logs []db.HabitLog
	if err := s.db.Select("log_date").
		Where("habit_id = ?", habitID).
		Where("log_date BETWEEN ? AND ?", from, to).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}

	done := make(map[calendar.Date]bool, len(logs))
	for _, log := range logs {
		done[log.LogDate] = true
	}
	return done, nil
}

// Stats 基于全部打卡日期计算统计值
func (s *HabitLogService) Stats(habitID uint, today calendar.Date) (stats.Summary, error) {
	dates, err := s.DatesDescending(habitID)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(dates, today), nil
}

func logDates(logs []db.HabitLog) []calendar.Date {
	dates := make([]calendar.Date, 0, len(logs))
	for _, log := range logs {
		dates = append(dates, log.LogDate)
	}
	return dates
}
