package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DateLayout 日历日期的序列化格式
const DateLayout = "2006-01-02"

// Date 不带时区的日历日期（用户本地日），用于连续学习天数计算
// swagger:model Date
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate 构造日期，越界的月/日会按 time.Date 规则归一化
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf 取时间点在其自身时区下的日历日期
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.utc().AddDate(0, 0, n))
}

// DaysSince 返回 d 与 o 之间相差的天数（d 在后为正）
func (d Date) DaysSince(o Date) int {
	return int(d.utc().Sub(o.utc()).Hours() / 24)
}

func (d Date) Before(o Date) bool { return d.utc().Before(o.utc()) }

func (d Date) After(o Date) bool { return d.utc().After(o.utc()) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GormDataType 以字符串列存储
func (Date) GormDataType() string {
	return "string"
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case time.Time:
		*d = DateOf(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
}

func (d *Date) scanString(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	// 部分驱动会把 DATE 列返回为完整时间戳
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateSet 有序、去重的日期集合，按 JSON 数组存储
type DateSet []Date

func (s DateSet) Contains(d Date) bool {
	for _, x := range s {
		if x == d {
			return true
		}
	}
	return false
}

// With 返回加入 d 后的新集合，不修改原集合
func (s DateSet) With(d Date) DateSet {
	out := make(DateSet, 0, len(s)+1)
	out = append(out, s...)
	if !s.Contains(d) {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (s DateSet) Clone() DateSet {
	if s == nil {
		return nil
	}
	out := make(DateSet, len(s))
	copy(out, s)
	return out
}

func (DateSet) GormDataType() string {
	return "text"
}

func (s DateSet) Value() (driver.Value, error) {
	dates := make([]string, 0, len(s))
	for _, d := range s {
		dates = append(dates, d.String())
	}
	b, err := json.Marshal(dates)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *DateSet) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into DateSet", value)
	}
	var dates []string
	if err := json.Unmarshal(raw, &dates); err != nil {
		return err
	}
	if len(dates) == 0 {
		*s = nil
		return nil
	}
	out := make(DateSet, 0, len(dates))
	for _, ds := range dates {
		d, err := ParseDate(ds)
		if err != nil {
			return err
		}
		out = append(out, d)
	}
	*s = out
	return nil
}
