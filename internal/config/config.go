package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSessionSecret 仅供本地开发使用，release 模式下拒绝启动
const DefaultSessionSecret = "habitlog-dev-secret"

// ErrInsecureSecret 在 release 模式下仍使用默认密钥时返回
var ErrInsecureSecret = errors.New("SESSION_SECRET and JWT_SECRET must be set in release mode")

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabaseDriver    string
	DatabasePath      string
	DatabaseURL       string
	SessionSecret     string
	JWTSecret         string
	GinMode           string
	TimeZone          string
	AllowAnonymous    bool
	TemplateDir       string
	StaticDir         string
	LogLevel          string
	LogFile           string
	SuperRootUserName string
	SuperRootPassword string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 当前目录存在 .env 时先加载它，已设置的环境变量不会被覆盖。
func Load() AppConfig {
	_ = godotenv.Load()

	port := envOrDefault("PORT", "8080")

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	sessionSecret := envOrDefault("SESSION_SECRET", DefaultSessionSecret)

	return AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabaseDriver:    strings.ToLower(envOrDefault("DATABASE_DRIVER", "sqlite")),
		DatabasePath:      envOrDefault("DATABASE_PATH", "habitlog.db"),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SessionSecret:     sessionSecret,
		JWTSecret:         envOrDefault("JWT_SECRET", sessionSecret),
		GinMode:           envOrDefault("GIN_MODE", "release"),
		TimeZone:          envOrDefault("TIME_ZONE", "UTC"),
		AllowAnonymous:    envBool("ALLOW_ANONYMOUS", false),
		TemplateDir:       envOrDefault("TEMPLATE_DIR", "web/template"),
		StaticDir:         envOrDefault("STATIC_DIR", "web/static"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFile:           strings.TrimSpace(os.Getenv("LOG_FILE")),
		SuperRootUserName: strings.TrimSpace(os.Getenv("SUPER_ROOT_USER_NAME")),
		SuperRootPassword: strings.TrimSpace(os.Getenv("SUPER_ROOT_PASSWORD")),
	}
}

// Location 解析参考时区，"今天" 统一按该时区计算；无法识别时回退到 UTC。
func (c AppConfig) Location() *time.Location {
	name := strings.TrimSpace(c.TimeZone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate 检查配置能否用于对外服务
func (c AppConfig) Validate() error {
	if c.GinMode == "release" && c.UsesDefaultSecret() {
		return ErrInsecureSecret
	}
	return nil
}

// UsesDefaultSecret 报告会话或令牌是否仍由公开的默认密钥签名
func (c AppConfig) UsesDefaultSecret() bool {
	return c.SessionSecret == DefaultSessionSecret || c.JWTSecret == DefaultSessionSecret
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
