package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/logger"
	"github.com/habitlog/internal/service"
	"github.com/habitlog/internal/stats"
)

// detailWindowDays 详情页展示的最近天数
const detailWindowDays = 14

type habitCard struct {
	Habit     db.Habit
	Streak    int
	DoneToday bool
}

type dayStatus struct {
	Date    calendar.Date
	Done    bool
	IsToday bool
	Future  bool
}

// ShowHome 渲染习惯列表与新建表单
func (a *API) ShowHome(c *gin.Context) {
	a.renderHome(c, http.StatusOK, "", "")
}

// CreateHabitForm 处理首页的新建习惯表单
func (a *API) CreateHabitForm(c *gin.Context) {
	input := service.HabitInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
	}

	habit, err := a.habits.Create(scopeFrom(c), input, a.now())
	if err != nil {
		status, message := habitFormError(err)
		if status == http.StatusInternalServerError {
			logger.Error("create habit failed", "error", err)
		}
		a.renderHome(c, status, input.Name, message)
		return
	}

	logger.Info("habit created", "habit_id", habit.ID, "scope", scopeFrom(c))
	c.Redirect(http.StatusFound, "/")
}

// ToggleHabit 切换某天的打卡状态；日期缺失、非法或在未来时不做任何修改
func (a *API) ToggleHabit(c *gin.Context) {
	habit, ok := a.loadHabitPage(c)
	if !ok {
		return
	}

	date, err := calendar.Parse(c.PostForm("date"))
	if err != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	result, err := a.habitLogs.Toggle(habit.ID, date, a.today())
	if err != nil {
		if errors.Is(err, service.ErrInvalidDate) {
			c.Redirect(http.StatusFound, "/")
			return
		}
		logger.Error("toggle habit failed", "habit_id", habit.ID, "date", date, "error", err)
		a.renderErrorPage(c, http.StatusInternalServerError, "打卡失败，请稍后再试")
		return
	}

	logger.Debug("habit toggled", "habit_id", habit.ID, "date", date, "result", result)
	c.Redirect(http.StatusFound, refererOr(c, "/"))
}

// HabitStatus 返回某天是否已打卡，日期缺失、非法或在未来时一律视为未完成
func (a *API) HabitStatus(c *gin.Context) {
	habit, ok := a.loadHabitPage(c)
	if !ok {
		return
	}

	date, err := calendar.Parse(c.Query("date"))
	if err != nil || date.After(a.today()) {
		c.JSON(http.StatusOK, gin.H{"done": false})
		return
	}

	done, err := a.habitLogs.IsDoneOn(habit.ID, date)
	if err != nil {
		logger.Error("load habit status failed", "habit_id", habit.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "获取打卡状态失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"done": done})
}

// ShowHabitDetail 渲染最近两周与本周的打卡情况
func (a *API) ShowHabitDetail(c *gin.Context) {
	habit, ok := a.loadHabitPage(c)
	if !ok {
		return
	}

	today := a.today()
	recent := calendar.Window(today, detailWindowDays)
	week := calendar.Week(today)

	from := recent[len(recent)-1]
	if week[0].Before(from) {
		from = week[0]
	}
	done, err := a.habitLogs.DoneSet(habit.ID, from, week[len(week)-1])
	if err != nil {
		logger.Error("load habit logs failed", "habit_id", habit.ID, "error", err)
		a.renderErrorPage(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	dates, err := a.habitLogs.DatesDescending(habit.ID)
	if err != nil {
		logger.Error("load habit logs failed", "habit_id", habit.ID, "error", err)
		a.renderErrorPage(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	description, err := renderMarkdown(habit.Description)
	if err != nil {
		logger.Warn("render habit description failed", "habit_id", habit.ID, "error", err)
	}

	a.renderPage(c, http.StatusOK, "habit_detail.html", gin.H{
		"title":       habit.Name,
		"habit":       habit,
		"description": description,
		"streak":      stats.CurrentStreak(dates, today),
		"days":        buildDayStatuses(recent, done, today),
		"week":        buildDayStatuses(week, done, today),
		"today":       today,
	})
}

// ShowConfirmDelete 渲染删除确认页
func (a *API) ShowConfirmDelete(c *gin.Context) {
	habit, ok := a.loadHabitPage(c)
	if !ok {
		return
	}
	a.renderPage(c, http.StatusOK, "confirm_delete.html", gin.H{
		"title": "删除习惯",
		"habit": habit,
	})
}

// DeleteHabitForm 删除习惯及其全部打卡记录
func (a *API) DeleteHabitForm(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		a.renderErrorPage(c, http.StatusNotFound, "习惯不存在")
		return
	}

	if err := a.habits.Delete(id, scopeFrom(c)); err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			a.renderErrorPage(c, http.StatusNotFound, "习惯不存在")
			return
		}
		logger.Error("delete habit failed", "habit_id", id, "error", err)
		a.renderErrorPage(c, http.StatusInternalServerError, "删除习惯失败")
		return
	}

	logger.Info("habit deleted", "habit_id", id, "scope", scopeFrom(c))
	c.Redirect(http.StatusFound, "/")
}

// ShowInsights 渲染连续天数、总次数与本周完成率
func (a *API) ShowInsights(c *gin.Context) {
	habit, ok := a.loadHabitPage(c)
	if !ok {
		return
	}

	summary, err := a.habitLogs.Stats(habit.ID, a.today())
	if err != nil {
		logger.Error("compute habit stats failed", "habit_id", habit.ID, "error", err)
		a.renderErrorPage(c, http.StatusInternalServerError, "计算统计信息失败")
		return
	}

	a.renderPage(c, http.StatusOK, "habit_insights.html", gin.H{
		"title":              habit.Name,
		"habit":              habit,
		"current_streak":     summary.CurrentStreak,
		"longest_streak":     summary.LongestStreak,
		"total_completions":  summary.TotalCompletions,
		"weekly_consistency": summary.WeeklyConsistency,
	})
}

func (a *API) renderHome(c *gin.Context, status int, formName, formError string) {
	scope := scopeFrom(c)
	habits, err := a.habits.List(scope)
	if err != nil {
		logger.Error("list habits failed", "scope", scope, "error", err)
		a.renderErrorPage(c, http.StatusInternalServerError, "获取习惯列表失败")
		return
	}

	today := a.today()
	cards := make([]habitCard, 0, len(habits))
	for _, habit := range habits {
		dates, err := a.habitLogs.DatesDescending(habit.ID)
		if err != nil {
			logger.Error("load habit logs failed", "habit_id", habit.ID, "error", err)
			a.renderErrorPage(c, http.StatusInternalServerError, "获取打卡记录失败")
			return
		}
		cards = append(cards, habitCard{
			Habit:     habit,
			Streak:    stats.CurrentStreak(dates, today),
			DoneToday: len(dates) > 0 && dates[0] == today,
		})
	}

	a.renderPage(c, status, "home.html", gin.H{
		"title":     "我的习惯",
		"habits":    cards,
		"today":     today,
		"formName":  formName,
		"formError": formError,
	})
}

// loadHabitPage 解析路径中的习惯并校验归属，失败时已写出 404 页面
func (a *API) loadHabitPage(c *gin.Context) (*db.Habit, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		a.renderErrorPage(c, http.StatusNotFound, "习惯不存在")
		return nil, false
	}

	habit, err := a.habits.Get(id, scopeFrom(c))
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			a.renderErrorPage(c, http.StatusNotFound, "习惯不存在")
			return nil, false
		}
		logger.Error("load habit failed", "habit_id", id, "error", err)
		a.renderErrorPage(c, http.StatusInternalServerError, "加载习惯失败")
		return nil, false
	}
	return habit, true
}

// renderPage 为模板附加当前用户信息
func (a *API) renderPage(c *gin.Context, status int, template string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}
	payload["current_user"] = c.GetString(usernameContextKey)
	payload["anonymous"] = scopeFrom(c).IsAnonymous()

	c.HTML(status, template, payload)
}

func (a *API) renderErrorPage(c *gin.Context, status int, message string) {
	a.renderPage(c, status, "error.html", gin.H{
		"title":   "出错了",
		"status":  status,
		"message": message,
	})
}

func buildDayStatuses(days []calendar.Date, done map[calendar.Date]bool, today calendar.Date) []dayStatus {
	statuses := make([]dayStatus, 0, len(days))
	for _, day := range days {
		statuses = append(statuses, dayStatus{
			Date:    day,
			Done:    done[day],
			IsToday: day == today,
			Future:  day.After(today),
		})
	}
	return statuses
}

func habitFormError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmptyName):
		return http.StatusOK, "习惯名称不能为空"
	case errors.Is(err, service.ErrNameTooLong):
		return http.StatusOK, "习惯名称过长"
	case errors.Is(err, service.ErrDuplicateName):
		return http.StatusOK, "已存在同名习惯"
	default:
		return http.StatusInternalServerError, "创建习惯失败"
	}
}
