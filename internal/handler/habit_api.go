package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/logger"
	"github.com/habitlog/internal/service"
	"github.com/habitlog/internal/stats"
)

type habitResponse struct {
	ID          uint          `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
	CreatedOn   calendar.Date `json:"created_on"`
	Anonymous   bool          `json:"anonymous"`
}

func (a *API) toHabitResponse(habit db.Habit) habitResponse {
	return habitResponse{
		ID:          habit.ID,
		Name:        habit.Name,
		Description: habit.Description,
		CreatedAt:   habit.CreatedAt,
		CreatedOn:   calendar.Today(habit.CreatedAt, a.location),
		Anonymous:   habit.UserID == nil,
	}
}

// ListHabits 返回当前分区的习惯列表
func (a *API) ListHabits(c *gin.Context) {
	habits, err := a.habits.List(scopeFrom(c))
	if err != nil {
		handleHabitError(c, err)
		return
	}

	items := make([]habitResponse, 0, len(habits))
	for _, habit := range habits {
		items = append(items, a.toHabitResponse(habit))
	}
	c.JSON(http.StatusOK, gin.H{"habits": items})
}

// CreateHabit 创建习惯
func (a *API) CreateHabit(c *gin.Context) {
	var payload struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	habit, err := a.habits.Create(scopeFrom(c), service.HabitInput{
		Name:        payload.Name,
		Description: payload.Description,
	}, a.now())
	if err != nil {
		handleHabitError(c, err)
		return
	}

	logger.Info("habit created", "habit_id", habit.ID, "scope", scopeFrom(c))
	c.JSON(http.StatusCreated, a.toHabitResponse(*habit))
}

// GetHabit 返回单个习惯及其概要统计
func (a *API) GetHabit(c *gin.Context) {
	habit, ok := a.loadHabitJSON(c)
	if !ok {
		return
	}

	summary, err := a.habitLogs.Stats(habit.ID, a.today())
	if err != nil {
		handleHabitError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"habit": a.toHabitResponse(*habit),
		"stats": summary,
	})
}

// DeleteHabit 删除习惯及其打卡记录
func (a *API) DeleteHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusNotFound, "习惯不存在")
		return
	}

	if err := a.habits.Delete(id, scopeFrom(c)); err != nil {
		handleHabitError(c, err)
		return
	}

	logger.Info("habit deleted", "habit_id", id, "scope", scopeFrom(c))
	c.Status(http.StatusNoContent)
}

// ToggleHabitAPI 切换某天的打卡状态，date 缺省为今天
func (a *API) ToggleHabitAPI(c *gin.Context) {
	habit, ok := a.loadHabitJSON(c)
	if !ok {
		return
	}

	var payload struct {
		Date string `json:"date"`
	}
	if c.Request.ContentLength != 0 && isJSONRequest(c) {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	}

	today := a.today()
	date := today
	if payload.Date != "" {
		parsed, err := calendar.Parse(payload.Date)
		if err != nil {
			handleHabitError(c, err)
			return
		}
		date = parsed
	}

	result, err := a.habitLogs.Toggle(habit.ID, date, today)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	logger.Debug("habit toggled", "habit_id", habit.ID, "date", date, "result", result)
	c.JSON(http.StatusOK, gin.H{
		"date":   date,
		"done":   result == service.ToggleCreated,
		"result": result.String(),
	})
}

// ListHabitLogs 返回打卡日期，最新的在前
func (a *API) ListHabitLogs(c *gin.Context) {
	habit, ok := a.loadHabitJSON(c)
	if !ok {
		return
	}

	dates, err := a.habitLogs.DatesDescending(habit.ID)
	if err != nil {
		handleHabitError(c, err)
		return
	}
	if dates == nil {
		dates = []calendar.Date{}
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

// HabitStats 返回连续天数、总次数与本周完成率
func (a *API) HabitStats(c *gin.Context) {
	habit, ok := a.loadHabitJSON(c)
	if !ok {
		return
	}

	today := a.today()
	summary, err := a.habitLogs.Stats(habit.ID, today)
	if err != nil {
		handleHabitError(c, err)
		return
	}
	c.JSON(http.StatusOK, struct {
		stats.Summary
		Today calendar.Date `json:"today"`
	}{summary, today})
}

func (a *API) loadHabitJSON(c *gin.Context) (*db.Habit, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusNotFound, "习惯不存在")
		return nil, false
	}

	habit, err := a.habits.Get(id, scopeFrom(c))
	if err != nil {
		handleHabitError(c, err)
		return nil, false
	}
	return habit, true
}

func handleHabitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "习惯不存在")
	case errors.Is(err, service.ErrEmptyName):
		respondError(c, http.StatusBadRequest, "习惯名称不能为空")
	case errors.Is(err, service.ErrNameTooLong):
		respondError(c, http.StatusBadRequest, "习惯名称过长")
	case errors.Is(err, service.ErrDuplicateName):
		respondError(c, http.StatusConflict, "已存在同名习惯")
	case errors.Is(err, calendar.ErrMalformed):
		respondError(c, http.StatusBadRequest, "日期格式应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrFutureDate):
		respondError(c, http.StatusUnprocessableEntity, "不能为未来的日期打卡")
	case errors.Is(err, service.ErrInvalidDate):
		respondError(c, http.StatusBadRequest, "日期不合法")
	case errors.Is(err, service.ErrInvalidScope):
		respondError(c, http.StatusUnauthorized, "请先登录")
	default:
		logger.Error("habit request failed", "path", c.Request.URL.Path, "error", err)
		respondError(c, http.StatusInternalServerError, "服务器内部错误")
	}
}
