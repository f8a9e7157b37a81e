package router

import (
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/config"
	"github.com/habitlog/internal/handler"
	"github.com/habitlog/internal/logger"
	"gorm.io/gorm"
)

const sessionName = "habitlog_session"

// Options 描述路由层依赖的运行参数
type Options struct {
	SessionSecret  string
	TemplateDir    string
	StaticDir      string
	Location       *time.Location
	AllowAnonymous bool
	JWTSecret      string
	TokenTTL       time.Duration
	// Now 仅用于测试注入时钟
	Now func() time.Time
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(gdb *gorm.DB, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	// 配置会话中间件
	secret := opts.SessionSecret
	if strings.TrimSpace(secret) == "" {
		logger.Warn("session secret not set, falling back to the development secret")
		secret = config.DefaultSessionSecret
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   14 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	// 加载模板并添加自定义函数
	r.SetFuncMap(templateFuncs())
	if dir := strings.TrimSpace(opts.TemplateDir); dir != "" {
		r.LoadHTMLGlob(filepath.Join(dir, "*.html"))
	}

	// 静态文件服务
	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		r.Static("/static", dir)
		// service worker 需要从根路径提供，才能接管整个站点
		r.StaticFile("/service-worker.js", filepath.Join(dir, "service-worker.js"))
	}

	api := handler.NewAPI(gdb, handler.Options{
		Location:       opts.Location,
		AllowAnonymous: opts.AllowAnonymous,
		JWTSecret:      opts.JWTSecret,
		TokenTTL:       opts.TokenTTL,
		Now:            opts.Now,
	})

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := api.DB().DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 账户路由
	accounts := r.Group("/accounts")
	{
		accounts.GET("/signup", api.ShowSignupPage)
		accounts.POST("/signup", api.Signup)
		accounts.GET("/login", api.ShowLoginPage)
		accounts.POST("/login", api.Login)
		accounts.GET("/logout", api.Logout)
		accounts.POST("/logout", api.Logout)
	}

	// 页面路由
	pages := r.Group("")
	pages.Use(api.ScopeRequired())
	{
		pages.GET("/", api.ShowHome)
		pages.POST("/", api.CreateHabitForm)
		pages.POST("/toggle/:id", api.ToggleHabit)
		pages.GET("/habit/:id", api.ShowHabitDetail)
		pages.GET("/habit/:id/status", api.HabitStatus)
		pages.GET("/habit/:id/delete/confirm", api.ShowConfirmDelete)
		pages.POST("/habit/:id/delete", api.DeleteHabitForm)
		pages.GET("/habit/:id/insights", api.ShowInsights)
	}

	// JSON API路由
	r.POST("/api/auth/token", api.IssueToken)
	apiGroup := r.Group("/api")
	apiGroup.Use(api.APIScopeRequired())
	{
		apiGroup.GET("/habits", api.ListHabits)
		apiGroup.POST("/habits", api.CreateHabit)
		apiGroup.GET("/habits/:id", api.GetHabit)
		apiGroup.DELETE("/habits/:id", api.DeleteHabit)
		apiGroup.POST("/habits/:id/toggle", api.ToggleHabitAPI)
		apiGroup.GET("/habits/:id/logs", api.ListHabitLogs)
		apiGroup.GET("/habits/:id/stats", api.HabitStats)
	}

	return r
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"weekdayName": weekdayName,
		"shortDate": func(d calendar.Date) string {
			return fmt.Sprintf("%02d-%02d", int(d.Month), d.Day)
		},
		"percent": func(v float64) string {
			return fmt.Sprintf("%.1f%%", v)
		},
	}
}

var weekdayNames = [...]string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

// weekdayName 返回中文星期名，周一为一周的第一天
func weekdayName(d calendar.Date) string {
	return weekdayNames[d.Weekday()]
}
