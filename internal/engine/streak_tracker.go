package engine

import (
	"fmt"
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"time"

	"github.com/pkg/errors"
)

// StreakStatus 供界面展示的当日状态
type StreakStatus string

const (
	StreakActive StreakStatus = "ACTIVE"
	StreakAtRisk StreakStatus = "AT_RISK"
	StreakBroken StreakStatus = "BROKEN"
)

// StreakTransition 一次活动记录对连续天数的影响
type StreakTransition string

const (
	TransitionStarted    StreakTransition = "STARTED"
	TransitionActive     StreakTransition = "ACTIVE"
	TransitionContinuing StreakTransition = "CONTINUING"
	TransitionFrozen     StreakTransition = "FROZEN"
	TransitionBroken     StreakTransition = "BROKEN"
)

type NotificationKind string

const (
	NotifyMilestone    NotificationKind = "STREAK_MILESTONE"
	NotifyFreezeEarned NotificationKind = "FREEZE_EARNED"
	NotifyFrozen       NotificationKind = "STREAK_FROZEN"
	NotifyBroken       NotificationKind = "STREAK_BROKEN"
)

// Notification 随活动记录一起返回给客户端的提示，推送由外部系统负责
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Streak  int              `json:"streak"`
	Date    model.Date       `json:"date"`
	Message string           `json:"message"`
}

type StreakConfig struct {
	Milestones []int
	// FreezeGrantEvery 连续天数每达到该值的整数倍发放一张冻结卡
	FreezeGrantEvery int
	// MaxFreezes 冻结卡库存上限，0 表示不限
	MaxFreezes int
}

func DefaultStreakConfig() StreakConfig {
	return StreakConfig{
		Milestones:       []int{7, 30, 100, 365, 1000},
		FreezeGrantEvery: 30,
	}
}

type StreakTracker struct {
	cfg        StreakConfig
	milestones map[int]bool
}

func NewStreakTracker(cfg StreakConfig) *StreakTracker {
	m := make(map[int]bool, len(cfg.Milestones))
	for _, v := range cfg.Milestones {
		m[v] = true
	}
	return &StreakTracker{cfg: cfg, milestones: m}
}

func (t *StreakTracker) Config() StreakConfig {
	return t.cfg
}

// NewStreakState 用户首次活动前的初始状态
func NewStreakState(userID, timezone string) model.StreakState {
	if timezone == "" {
		timezone = "UTC"
	}
	return model.StreakState{
		UserID:   userID,
		Timezone: timezone,
	}
}

// Classify 判断在 activityDate 记录活动会发生哪种状态转移
func (t *StreakTracker) Classify(state model.StreakState, activityDate model.Date) StreakTransition {
	if state.LastActiveDate.IsZero() || state.CurrentStreak == 0 {
		return TransitionStarted
	}
	gap := activityDate.DaysSince(state.LastActiveDate)
	switch {
	case gap <= 0:
		return TransitionActive
	case gap == 1:
		return TransitionContinuing
	case bridgedByFreezes(state, state.LastActiveDate, activityDate):
		return TransitionFrozen
	default:
		return TransitionBroken
	}
}

// RecordActivity 在用户本地日期 activityDate 记录一次学习活动
func (t *StreakTracker) RecordActivity(state model.StreakState, activityDate model.Date) (model.StreakState, []Notification) {
	next := state.Clone()
	var notes []Notification

	switch t.Classify(state, activityDate) {
	case TransitionActive:
		return next, nil
	case TransitionStarted:
		next.CurrentStreak = 1
	case TransitionContinuing:
		next.CurrentStreak = state.CurrentStreak + 1
		if t.milestones[next.CurrentStreak] {
			notes = append(notes, Notification{
				Kind:    NotifyMilestone,
				Streak:  next.CurrentStreak,
				Date:    activityDate,
				Message: fmt.Sprintf("%d-day streak!", next.CurrentStreak),
			})
		}
		if t.cfg.FreezeGrantEvery > 0 && next.CurrentStreak%t.cfg.FreezeGrantEvery == 0 &&
			(t.cfg.MaxFreezes == 0 || next.FreezesAvailable < t.cfg.MaxFreezes) {
			next.FreezesAvailable++
			notes = append(notes, Notification{
				Kind:    NotifyFreezeEarned,
				Streak:  next.CurrentStreak,
				Date:    activityDate,
				Message: "You earned a streak freeze",
			})
		}
	case TransitionFrozen:
		// 被冻结的日子不计入天数，但连续记录不中断
		notes = append(notes, Notification{
			Kind:    NotifyFrozen,
			Streak:  next.CurrentStreak,
			Date:    activityDate,
			Message: "Your streak was protected by a freeze",
		})
	case TransitionBroken:
		notes = append(notes, Notification{
			Kind:    NotifyBroken,
			Streak:  state.CurrentStreak,
			Date:    activityDate,
			Message: fmt.Sprintf("Your %d-day streak ended", state.CurrentStreak),
		})
		next.CurrentStreak = 1
	}

	next.LastActiveDate = activityDate
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	return next, notes
}

// UseFreeze 显式消耗一张冻结卡覆盖 missedDate，冻结不会自动发生
func (t *StreakTracker) UseFreeze(state model.StreakState, missedDate model.Date) (model.StreakState, error) {
	if missedDate.IsZero() {
		return state, errors.Wrap(util.ErrInvalidInput, "missed date is required")
	}
	if state.FreezeUsedDates.Contains(missedDate) {
		return state.Clone(), nil
	}
	if state.FreezesAvailable <= 0 {
		return state, util.ErrNoFreezeAvailable
	}
	if !state.LastActiveDate.IsZero() && !missedDate.After(state.LastActiveDate) {
		return state, errors.Wrapf(util.ErrInvalidInput, "date %s is not after last active date %s", missedDate, state.LastActiveDate)
	}
	next := state.Clone()
	next.FreezesAvailable--
	next.FreezeUsedDates = state.FreezeUsedDates.With(missedDate)
	return next, nil
}

// GetStatus 纯读取：ACTIVE 今天已学习；AT_RISK 今天尚未学习但连续记录仍有效；否则 BROKEN
func (t *StreakTracker) GetStatus(state model.StreakState, now time.Time) StreakStatus {
	if state.LastActiveDate.IsZero() || state.CurrentStreak == 0 {
		return StreakBroken
	}
	loc, err := LoadLocation(state.Timezone)
	if err != nil {
		loc = time.UTC
	}
	today := LocalDate(now, loc)
	gap := today.DaysSince(state.LastActiveDate)
	switch {
	case gap <= 0:
		return StreakActive
	case gap == 1:
		return StreakAtRisk
	case bridgedByFreezes(state, state.LastActiveDate, today):
		return StreakAtRisk
	default:
		return StreakBroken
	}
}

// EffectiveStreak 展示用的当前天数，已中断的记录显示为 0
func (t *StreakTracker) EffectiveStreak(state model.StreakState, now time.Time) int {
	if t.GetStatus(state, now) == StreakBroken {
		return 0
	}
	return state.CurrentStreak
}

// bridgedByFreezes from 与 to 之间（不含两端）的每一天都已使用冻结卡
func bridgedByFreezes(state model.StreakState, from, to model.Date) bool {
	if len(state.FreezeUsedDates) == 0 {
		return false
	}
	for d := from.AddDays(1); d.Before(to); d = d.AddDays(1) {
		if !state.FreezeUsedDates.Contains(d) {
			return false
		}
	}
	return true
}
