package handler

import (
	"time"

	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/service"
	"gorm.io/gorm"
)

// Options 描述处理器的运行参数
type Options struct {
	// Location 是计算 "今天" 的参考时区
	Location *time.Location
	// AllowAnonymous 为 true 时未登录请求使用匿名共享分区，否则要求登录
	AllowAnonymous bool
	JWTSecret      string
	TokenTTL       time.Duration
	// Now 仅用于测试注入时钟
	Now func() time.Time
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db             *gorm.DB
	habits         *service.HabitService
	habitLogs      *service.HabitLogService
	accounts       *service.AccountService
	tokens         *service.TokenService
	location       *time.Location
	allowAnonymous bool
	now            func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, opts Options) *API {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &API{
		db:             db,
		habits:         service.NewHabitService(db),
		habitLogs:      service.NewHabitLogService(db),
		accounts:       service.NewAccountService(db),
		tokens:         service.NewTokenService(opts.JWTSecret, opts.TokenTTL),
		location:       loc,
		allowAnonymous: opts.AllowAnonymous,
		now:            now,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// today 返回参考时区下的当前日期，所有统计与打卡校验都以它为准
func (a *API) today() calendar.Date {
	return calendar.Today(a.now(), a.location)
}
