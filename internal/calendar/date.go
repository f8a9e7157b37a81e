package calendar

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout 是日期在表单、JSON 与数据库中的统一格式
const Layout = "2006-01-02"

// ErrMalformed 在日期字符串无法解析时返回
var ErrMalformed = errors.New("malformed date")

// Date 表示不带时区的日历日期，可直接作为 map key 使用
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New 构造日期，越界的月/日按 time.Date 规则进位
func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime 取 t 所在时区的年月日
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today 返回 now 在参考时区 loc 下的日期，loc 为空时使用 UTC
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(now.In(loc))
}

// Parse 解析 YYYY-MM-DD 格式的日期
func Parse(value string) (Date, error) {
	trimmed := strings.TrimSpace(value)
	t, err := time.Parse(Layout, trimmed)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrMalformed, value)
	}
	return FromTime(t), nil
}

// Time 返回当天 UTC 零点
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return FromTime(d.Time().AddDate(0, 0, n))
}

// Weekday 返回以周一为 0 的星期序号
func (d Date) Weekday() int {
	return (int(d.Time().Weekday()) + 6) % 7
}

// StartOfWeek 返回所在周的周一
func (d Date) StartOfWeek() Date {
	return d.AddDays(-d.Weekday())
}

func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return compareInt(d.Year, other.Year)
	case d.Month != other.Month:
		return compareInt(int(d.Month), int(other.Month))
	default:
		return compareInt(d.Day, other.Day)
	}
}

func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

func (d Date) After(other Date) bool {
	return d.Compare(other) > 0
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Value 以 YYYY-MM-DD 文本落库，保证字典序与日期序一致
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan 兼容文本列与驱动自动转换出的 time.Time
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = FromTime(v.UTC())
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("calendar: cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(value string) error {
	if len(value) > len(Layout) {
		value = value[:len(Layout)]
	}
	parsed, err := Parse(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GormDataType 让 gorm 迁移时为该字段建 date 列
func (Date) GormDataType() string {
	return "date"
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Window 返回以 end 结尾的 n 天，最近的日期在前
func Window(end Date, n int) []Date {
	if n <= 0 {
		return nil
	}
	days := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, end.AddDays(-i))
	}
	return days
}

// Week 返回 d 所在周从周一到周日的 7 天
func Week(d Date) []Date {
	start := d.StartOfWeek()
	days := make([]Date, 0, 7)
	for i := 0; i < 7; i++ {
		days = append(days, start.AddDays(i))
	}
	return days
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
