package service

import (
	"lingua_progress/internal/engine"
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type EventType string

const (
	EventExerciseAnswered EventType = "EXERCISE_ANSWERED"
	EventLessonCompleted  EventType = "LESSON_COMPLETED"
	EventDailySession     EventType = "DAILY_SESSION"
)

// LearningEvent 客户端上报的一次学习行为
type LearningEvent struct {
	Type EventType `json:"type"`

	// EXERCISE_ANSWERED
	Skill     model.Skill `json:"skill,omitempty"`
	IsCorrect bool        `json:"isCorrect"`
	Score     float64     `json:"score"`
	CardID    string      `json:"cardId,omitempty"`
	// ReviewQuality 为空时由 score/isCorrect 推导
	ReviewQuality *int `json:"reviewQuality,omitempty"`

	// LESSON_COMPLETED
	LessonID string `json:"lessonId,omitempty"`

	// LocalDate 客户端所在时区的日期，为空时按 Timezone 从服务端时钟推导
	LocalDate  model.Date `json:"localDate"`
	Timezone   string     `json:"timezone,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// Validate 只检查载荷本身，不读取任何状态
func (e LearningEvent) Validate() error {
	if e.Timezone != "" {
		if _, err := engine.LoadLocation(e.Timezone); err != nil {
			return err
		}
	}
	switch e.Type {
	case EventExerciseAnswered:
		if !e.Skill.Valid() {
			return errors.Wrapf(util.ErrInvalidInput, "unknown skill %q", e.Skill)
		}
		if math.IsNaN(e.Score) || e.Score < 0 || e.Score > 100 {
			return errors.Wrapf(util.ErrInvalidInput, "score %v out of range [0,100]", e.Score)
		}
		if e.ReviewQuality != nil && e.CardID == "" {
			return errors.Wrap(util.ErrInvalidInput, "reviewQuality requires cardId")
		}
		if e.ReviewQuality != nil && (*e.ReviewQuality < engine.MinQuality || *e.ReviewQuality > engine.MaxQuality) {
			return errors.Wrapf(util.ErrInvalidInput, "review quality %d out of range [0,5]", *e.ReviewQuality)
		}
		if len(e.CardID) > 128 {
			return errors.Wrap(util.ErrInvalidInput, "cardId too long")
		}
	case EventLessonCompleted:
		if strings.TrimSpace(e.LessonID) == "" {
			return errors.Wrap(util.ErrInvalidInput, "lessonId is required")
		}
	case EventDailySession:
	default:
		return errors.Wrapf(util.ErrInvalidInput, "unknown event type %q", e.Type)
	}
	return nil
}

// feedsStreak 练习作答只更新复习与能力，课程完成和每日学习计入连续天数
func (e LearningEvent) feedsStreak() bool {
	return e.Type == EventLessonCompleted || e.Type == EventDailySession
}

// NextReview 本次事件调度后的卡片到期时间
type NextReview struct {
	CardID       string    `json:"cardId"`
	DueAt        time.Time `json:"dueAt"`
	IntervalDays int       `json:"intervalDays"`
}

// ProgressResult 一次事件处理后返回给客户端的结果
// swagger:model ProgressResult
type ProgressResult struct {
	XPEarned         int                      `json:"xpEarned"`
	TotalXP          int                      `json:"totalXp"`
	StreakStatus     engine.StreakStatus      `json:"streakStatus"`
	StreakDelta      int                      `json:"streakDelta"`
	CurrentStreak    int                      `json:"currentStreak"`
	LongestStreak    int                      `json:"longestStreak"`
	FreezesAvailable int                      `json:"freezesAvailable"`
	AssessedTier     model.Tier               `json:"assessedTier"`
	LevelChange      *engine.LevelChangeEvent `json:"levelChange"`
	NextReviewDates  []NextReview             `json:"nextReviewDates"`
	Notifications    []engine.Notification    `json:"notifications"`
}

// StreakView 连续学习状态的只读视图
// swagger:model StreakView
type StreakView struct {
	UserID           string              `json:"userId"`
	Status           engine.StreakStatus `json:"status"`
	CurrentStreak    int                 `json:"currentStreak"`
	LongestStreak    int                 `json:"longestStreak"`
	LastActiveDate   model.Date          `json:"lastActiveDate"`
	Timezone         string              `json:"timezone"`
	FreezesAvailable int                 `json:"freezesAvailable"`
	FreezeUsedDates  model.DateSet       `json:"freezeUsedDates"`
}

// ProficiencyView 能力档案的只读视图
// swagger:model ProficiencyView
type ProficiencyView struct {
	UserID       string               `json:"userId"`
	AssessedTier model.Tier           `json:"assessedTier"`
	TotalXP      int                  `json:"totalXp"`
	Skills       []model.SkillScore   `json:"skills"`
	NextTier     *engine.TierProgress `json:"nextTier"`
}
