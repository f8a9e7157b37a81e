// Package stats 汇总单个习惯打卡日期上的统计口径，所有函数均为纯计算，
// "今天" 由调用方显式传入。
package stats

import (
	"math"
	"slices"

	"github.com/habitlog/internal/calendar"
)

// Summary 是洞察页展示的全部统计值
type Summary struct {
	CurrentStreak     int     `json:"current_streak"`
	LongestStreak     int     `json:"longest_streak"`
	TotalCompletions  int     `json:"total_completions"`
	WeeklyConsistency float64 `json:"weekly_consistency"`
}

// Summarize 一次性计算全部统计值
func Summarize(dates []calendar.Date, today calendar.Date) Summary {
	return Summary{
		CurrentStreak:     CurrentStreak(dates, today),
		LongestStreak:     LongestStreak(dates),
		TotalCompletions:  TotalCompletions(dates),
		WeeklyConsistency: WeeklyConsistency(dates, today),
	}
}

// CurrentStreak 从 today 开始倒序比对，遇到第一个缺口即停止；
// today 当天没有打卡时返回 0。
func CurrentStreak(dates []calendar.Date, today calendar.Date) int {
	desc := slices.Clone(dates)
	slices.SortFunc(desc, func(a, b calendar.Date) int {
		return b.Compare(a)
	})
	desc = slices.Compact(desc)

	streak := 0
	expected := today
	for _, date := range desc {
		if date != expected {
			break
		}
		streak++
		expected = expected.AddDays(-1)
	}
	return streak
}

// LongestStreak 返回历史上最长的连续打卡天数
func LongestStreak(dates []calendar.Date) int {
	asc := slices.Clone(dates)
	slices.SortFunc(asc, func(a, b calendar.Date) int {
		return a.Compare(b)
	})
	asc = slices.Compact(asc)

	longest, current := 0, 0
	var prev calendar.Date
	for i, date := range asc {
		if i > 0 && date == prev.AddDays(1) {
			current++
		} else {
			current = 1
		}
		longest = max(longest, current)
		prev = date
	}
	return longest
}

func TotalCompletions(dates []calendar.Date) int {
	return len(dates)
}

// WeeklyConsistency 返回本周（周一起）已过天数中的完成比例，保留一位小数。
// 分母是截至 today 的天数而不是 7。
func WeeklyConsistency(dates []calendar.Date, today calendar.Date) float64 {
	start := today.StartOfWeek()
	daysSoFar := today.Weekday() + 1

	completed := 0
	for _, date := range dates {
		if !date.Before(start) && !date.After(today) {
			completed++
		}
	}

	ratio := float64(completed) / float64(daysSoFar) * 100
	return math.Round(ratio*10) / 10
}
