// Package engine 包含学习进度的三个纯计算组件：复习调度器、连续学习追踪器与水平评估引擎。
//
// 所有计算都以显式传入的状态和时间为输入，返回新的状态值，不读取系统时间，
// 也不做任何 I/O；持久化由 service 层的编排器负责。
package engine

import (
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"time"

	"github.com/pkg/errors"
)

// Clock 提供当前时间，测试中可注入固定时间
type Clock interface {
	Now() time.Time
}

// RealClock 系统时钟，只在程序入口处使用
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock 始终返回同一时刻
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// FuncClock 把函数包装为 Clock，便于在测试中推进时间
type FuncClock func() time.Time

func (f FuncClock) Now() time.Time {
	return f()
}

// LoadLocation 解析 IANA 时区，空串视为 UTC
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Wrapf(util.ErrInvalidInput, "unknown timezone %q", tz)
	}
	return loc, nil
}

// LocalDate 时间点在指定时区下的日历日期
func LocalDate(t time.Time, loc *time.Location) model.Date {
	if loc == nil {
		loc = time.UTC
	}
	return model.DateOf(t.In(loc))
}

// Today 按时区取时钟的本地日期，时区无效时退回 UTC
func Today(clock Clock, tz string) model.Date {
	loc, err := LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return LocalDate(clock.Now(), loc)
}
