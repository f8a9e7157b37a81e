package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Options 描述数据库连接方式
type Options struct {
	// Driver 取值 sqlite（默认）或 postgres
	Driver string
	// Path 为 sqlite 文件路径，为空时回退到 habitlog.db
	Path string
	// URL 为 postgres 连接串
	URL    string
	Silent bool
}

// Init 初始化数据库连接并执行自动迁移，成功后写入全局 DB。
func Init(opts Options) error {
	gdb, err := Open(opts)
	if err != nil {
		return err
	}

	if err := Migrate(gdb); err != nil {
		return err
	}

	DB = gdb
	return nil
}

// Open 建立连接但不迁移。唯一约束冲突统一翻译为 gorm.ErrDuplicatedKey。
func Open(opts Options) (*gorm.DB, error) {
	gormConfig := &gorm.Config{TranslateError: true}
	if opts.Silent {
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	}

	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "sqlite":
		path := strings.TrimSpace(opts.Path)
		if path == "" {
			path = "habitlog.db"
		}
		if !strings.HasPrefix(path, "file:") {
			if err := ensureParentDir(path); err != nil {
				return nil, err
			}
		}
		return gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig)
	case "postgres":
		url := strings.TrimSpace(opts.URL)
		if url == "" {
			return nil, errors.New("postgres driver requires DATABASE_URL")
		}
		return gorm.Open(postgres.Open(url), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// Migrate 为核心模型建表，唯一索引与级联删除约束随表一起创建
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&User{},
		&Habit{},
		&HabitLog{},
	)
}

// sqliteDSN 打开外键约束，使 habit_logs 的级联删除在存储层生效
func sqliteDSN(path string) string {
	if strings.Contains(path, "_foreign_keys=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
