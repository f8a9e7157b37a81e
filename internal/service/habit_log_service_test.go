package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/db"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func createTestHabit(t *testing.T, svc *HabitService, name string) *db.Habit {
	t.Helper()
	habit, err := svc.Create(db.Anonymous(), HabitInput{Name: name}, testNow)
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}
	return habit
}

func TestHabitLogToggleParity(t *testing.T) {
	gdb := setupHabitTestDB(t)
	habit := createTestHabit(t, NewHabitService(gdb), "写日记")
	logSvc := NewHabitLogService(gdb)

	today := calendar.New(2024, time.May, 8)
	day := today.AddDays(-3)

	for i := 1; i <= 5; i++ {
		result, err := logSvc.Toggle(habit.ID, day, today)
		if err != nil {
			t.Fatalf("Toggle #%d returned error: %v", i, err)
		}

		wantResult, wantDone := ToggleDeleted, false
		if i%2 == 1 {
			wantResult, wantDone = ToggleCreated, true
		}
		if result != wantResult {
			t.Fatalf("toggle #%d: expected %s, got %s", i, wantResult, result)
		}

		done, err := logSvc.IsDoneOn(habit.ID, day)
		if err != nil {
			t.Fatalf("IsDoneOn returned error: %v", err)
		}
		if done != wantDone {
			t.Fatalf("toggle #%d: expected done=%v, got %v", i, wantDone, done)
		}
	}

	count, err := logSvc.CountAll(habit.ID)
	if err != nil {
		t.Fatalf("CountAll returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one entry after odd toggles, got %d", count)
	}
}

func TestHabitLogToggleRejectsFutureDate(t *testing.T) {
	gdb := setupHabitTestDB(t)
	habit := createTestHabit(t, NewHabitService(gdb), "Run")
	logSvc := NewHabitLogService(gdb)

	today := calendar.New(2024, time.May, 8)

	_, err := logSvc.Toggle(habit.ID, today.AddDays(1), today)
	if !errors.Is(err, ErrFutureDate) || !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrFutureDate wrapping ErrInvalidDate, got %v", err)
	}

	if _, err := logSvc.Toggle(habit.ID, calendar.Date{}, today); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for zero date, got %v", err)
	}

	count, err := logSvc.CountAll(habit.ID)
	if err != nil {
		t.Fatalf("CountAll returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no persisted change, got %d entries", count)
	}

	// 今天本身允许打卡
	if result, err := logSvc.Toggle(habit.ID, today, today); err != nil || result != ToggleCreated {
		t.Fatalf("expected today to be accepted, got %s %v", result, err)
	}
}

func TestHabitLogToggleTreatsDuplicateInsertAsDelete(t *testing.T) {
	gdb := setupHabitTestDB(t)
	habit := createTestHabit(t, NewHabitService(gdb), "Stretch")
	logSvc := NewHabitLogService(gdb)

	today := calendar.New(2024, time.May, 8)

	// 模拟另一个请求抢先写入
	if err := gdb.Create(&db.HabitLog{HabitID: habit.ID, LogDate: today}).Error; err != nil {
		t.Fatalf("failed to seed log: %v", err)
	}

	result, err := logSvc.Toggle(habit.ID, today, today)
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if result != ToggleDeleted {
		t.Fatalf("expected ToggleDeleted, got %s", result)
	}

	done, err := logSvc.IsDoneOn(habit.ID, today)
	if err != nil || done {
		t.Fatalf("expected entry to be removed, done=%v err=%v", done, err)
	}
}

type recordingGormWriter struct {
	lines []string
}

func (w *recordingGormWriter) Printf(format string, args ...interface{}) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestHabitLogToggleOffDoesNotLogSQLError(t *testing.T) {
	gdb := setupHabitTestDB(t)
	habit := createTestHabit(t, NewHabitService(gdb), "Journal")

	writer := &recordingGormWriter{}
	loud := gdb.Session(&gorm.Session{Logger: gormlogger.New(writer, gormlogger.Config{LogLevel: gormlogger.Error})})
	logSvc := NewHabitLogService(loud)

	today := calendar.New(2024, time.May, 8)
	for i := 0; i < 2; i++ {
		if _, err := logSvc.Toggle(habit.ID, today, today); err != nil {
			t.Fatalf("Toggle #%d returned error: %v", i+1, err)
		}
	}

	if len(writer.lines) != 0 {
		t.Fatalf("expected toggle off to stay quiet, got logs: %v", writer.lines)
	}

	// 其它查询仍使用原有日志级别
	if err := loud.Exec("SELECT * FROM missing_table").Error; err == nil {
		t.Fatal("expected query against missing table to fail")
	}
	if len(writer.lines) == 0 {
		t.Fatal("expected non-toggle errors to still be logged")
	}
}

func TestHabitLogDatesAndDoneSet(t *testing.T) {
	gdb := setupHabitTestDB(t)
	habit := createTestHabit(t, NewHabitService(gdb), "Piano")
	other := createTestHabit(t, NewHabitService(gdb), "Guitar")
	logSvc := NewHabitLogService(gdb)

	today := calendar.New(2024, time.May, 8)
	for _, offset := range []int{-10, 0, -2, -1} {
		if _, err := logSvc.Toggle(habit.ID, today.AddDays(offset), today); err != nil {
			t.Fatalf("Toggle returned error: %v", err)
		}
	}
	if _, err := logSvc.Toggle(other.ID, today, today); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}

	dates, err := logSvc.DatesDescending(habit.ID)
	if err != nil {
		t.Fatalf("DatesDescending returned error: %v", err)
	}
	want := []calendar.Date{today, today.AddDays(-1), today.AddDays(-2), today.AddDays(-10)}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(dates))
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("dates[%d] = %s, want %s", i, dates[i], want[i])
		}
	}

	done, err := logSvc.DoneSet(habit.ID, today.AddDays(-6), today)
	if err != nil {
		t.Fatalf("DoneSet returned error: %v", err)
	}
	if len(done) != 3 || !done[today] || !done[today.AddDays(-2)] || done[today.AddDays(-10)] {
		t.Fatalf("unexpected done set: %v", done)
	}

	if _, err := logSvc.DoneSet(habit.ID, today, today.AddDays(-1)); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestHabitLogStatsScenario(t *testing.T) {
	gdb := setupHabitTestDB(t)
	habit := createTestHabit(t, NewHabitService(gdb), "Read")
	logSvc := NewHabitLogService(gdb)

	// 2024-05-06 周一 ~ 05-08 周三
	monday := calendar.New(2024, time.May, 6)
	wednesday := monday.AddDays(2)
	for i := 0; i < 3; i++ {
		if _, err := logSvc.Toggle(habit.ID, monday.AddDays(i), wednesday); err != nil {
			t.Fatalf("Toggle returned error: %v", err)
		}
	}

	summary, err := logSvc.Stats(habit.ID, wednesday)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if summary.CurrentStreak != 3 || summary.LongestStreak != 3 || summary.TotalCompletions != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.WeeklyConsistency != 100 {
		t.Fatalf("expected 100%% weekly consistency, got %v", summary.WeeklyConsistency)
	}

	if result, err := logSvc.Toggle(habit.ID, wednesday, wednesday); err != nil || result != ToggleDeleted {
		t.Fatalf("expected wednesday to be toggled off, got %s %v", result, err)
	}

	summary, err = logSvc.Stats(habit.ID, wednesday)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if summary.CurrentStreak != 0 || summary.LongestStreak != 2 {
		t.Fatalf("unexpected streaks after removal: current=%d longest=%d", summary.CurrentStreak, summary.LongestStreak)
	}
	if summary.WeeklyConsistency != 66.7 {
		t.Fatalf("expected 66.7%% weekly consistency, got %v", summary.WeeklyConsistency)
	}
}
