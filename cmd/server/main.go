package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/config"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/logger"
	"github.com/habitlog/internal/router"
)

type appContext struct {
	Config config.AppConfig
}

// ServeCmd 启动 HTTP 服务
type ServeCmd struct {
	Listen    string        `help:"Listen address." default:"${listen}" placeholder:"ADDR"`
	Anonymous bool          `help:"Allow unauthenticated visitors to share one habit list." default:"${anonymous}" negatable:""`
	TokenTTL  time.Duration `help:"Lifetime of API tokens." default:"72h"`
}

// CreateUserCmd 创建账号，已存在时不做修改
type CreateUserCmd struct {
	Username string `arg:"" help:"Account username."`
	Password string `arg:"" help:"Account password."`
}

var CLI struct {
	Serve      ServeCmd      `cmd:"" help:"Run the web server." default:"1"`
	CreateUser CreateUserCmd `cmd:"" name:"create-user" help:"Create a user if it does not exist."`
}

func main() {
	cfg := config.Load()
	ctx := kong.Parse(&CLI,
		kong.Name("habitlog"),
		kong.Description("Daily habit tracker"),
		kong.UsageOnError(),
		kong.Vars{
			"listen":    cfg.ListenAddr,
			"anonymous": strconv.FormatBool(cfg.AllowAnonymous),
		},
	)

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logger: %v\n", err)
		os.Exit(1)
	}

	if err := ctx.Run(&appContext{Config: cfg}); err != nil {
		logger.Fatal("command failed", "command", ctx.Command(), "error", err)
	}
}

func (cmd *ServeCmd) Run(app *appContext) error {
	cfg := app.Config
	cfg.ListenAddr = cmd.Listen
	cfg.AllowAnonymous = cmd.Anonymous

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.UsesDefaultSecret() {
		logger.Warn("using the development secret for sessions and tokens", "gin_mode", cfg.GinMode)
	}

	// 初始化数据库
	if err := db.Init(dbOptions(cfg)); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	if cfg.SuperRootUserName != "" && cfg.SuperRootPassword != "" {
		created, err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword)
		if err != nil {
			return fmt.Errorf("ensure super root user: %w", err)
		}
		if created {
			logger.Info("super root user created", "username", cfg.SuperRootUserName)
		}
	}

	gin.SetMode(cfg.GinMode)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(db.DB, router.Options{
		SessionSecret:  cfg.SessionSecret,
		TemplateDir:    cfg.TemplateDir,
		StaticDir:      cfg.StaticDir,
		Location:       cfg.Location(),
		AllowAnonymous: cfg.AllowAnonymous,
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cmd.TokenTTL,
	})

	logger.Info("server starting",
		"addr", cfg.ListenAddr,
		"driver", cfg.DatabaseDriver,
		"time_zone", cfg.Location().String(),
		"anonymous", cfg.AllowAnonymous,
	)
	return r.Run(cfg.ListenAddr)
}

func (cmd *CreateUserCmd) Run(app *appContext) error {
	username := strings.TrimSpace(cmd.Username)
	if username == "" || cmd.Password == "" {
		return fmt.Errorf("username and password are required")
	}

	if err := db.Init(dbOptions(app.Config)); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	created, err := db.EnsureUser(db.DB, username, cmd.Password)
	if err != nil {
		return err
	}
	if created {
		logger.Info("user created", "username", username)
	} else {
		logger.Warn("user already exists", "username", username)
	}
	return nil
}

func dbOptions(cfg config.AppConfig) db.Options {
	return db.Options{
		Driver: cfg.DatabaseDriver,
		Path:   cfg.DatabasePath,
		URL:    cfg.DatabaseURL,
		Silent: cfg.GinMode == gin.ReleaseMode,
	}
}
