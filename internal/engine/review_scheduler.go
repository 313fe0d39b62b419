package engine

import (
	"hash/fnv"
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	MinQuality        = 0
	MaxQuality        = 5
	// PassThreshold 质量达到 3 及以上视为成功回忆
	PassThreshold = 3

	DefaultJitterRatio     = 0.1
	DefaultMaxIntervalDays = 365
)

type SchedulerConfig struct {
	// JitterRatio 复习间隔的随机扰动比例，0 表示关闭
	JitterRatio     float64
	MaxIntervalDays int
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		JitterRatio:     DefaultJitterRatio,
		MaxIntervalDays: DefaultMaxIntervalDays,
	}
}

// ReviewScheduler SM-2 变体
type ReviewScheduler struct {
	cfg SchedulerConfig
}

func NewReviewScheduler(cfg SchedulerConfig) *ReviewScheduler {
	if cfg.MaxIntervalDays <= 0 {
		cfg.MaxIntervalDays = DefaultMaxIntervalDays
	}
	if cfg.JitterRatio < 0 {
		cfg.JitterRatio = 0
	}
	return &ReviewScheduler{cfg: cfg}
}

func (s *ReviewScheduler) Config() SchedulerConfig {
	return s.cfg
}

// NewReviewCard 首次接触某个学习单元时创建，立即到期
func NewReviewCard(userID, cardID string, now time.Time) model.ReviewCard {
	return model.ReviewCard{
		UserID:     userID,
		CardID:     cardID,
		EaseFactor: DefaultEaseFactor,
		DueAt:      now.UTC().Truncate(time.Millisecond),
	}
}

// Schedule 根据回忆质量计算卡片的下一次复习
func (s *ReviewScheduler) Schedule(card model.ReviewCard, quality int, now time.Time) (model.ReviewCard, error) {
	if quality < MinQuality || quality > MaxQuality {
		return card, errors.Wrapf(util.ErrInvalidInput, "review quality %d out of range [%d,%d]", quality, MinQuality, MaxQuality)
	}

	next := card.Clone()
	ef := card.EaseFactor
	if ef == 0 {
		ef = DefaultEaseFactor
	}
	next.EaseFactor = nextEaseFactor(ef, quality)

	if quality < PassThreshold {
		next.Repetitions = 0
		next.IntervalDays = 1
	} else {
		next.Repetitions = card.Repetitions + 1
		switch next.Repetitions {
		case 1:
			next.IntervalDays = 1
		case 2:
			next.IntervalDays = 6
		default:
			next.IntervalDays = int(math.Round(float64(card.IntervalDays) * next.EaseFactor))
		}
	}

	// IntervalDays 保存未扰动的 SM-2 间隔，扰动只作用于本次到期时间
	next.IntervalDays = s.clampInterval(next.IntervalDays)
	dueDays := s.clampInterval(s.jitter(next, next.IntervalDays))

	// 存储层只保留毫秒精度
	reviewedAt := now.UTC().Truncate(time.Millisecond)
	next.LastReviewedAt = &reviewedAt
	next.DueAt = reviewedAt.AddDate(0, 0, dueDays)
	return next, nil
}

// ScheduledDays 上次复习到到期时间相隔的天数，包含扰动
func ScheduledDays(card model.ReviewCard) int {
	if card.LastReviewedAt == nil {
		return 0
	}
	return int(math.Round(card.DueAt.Sub(*card.LastReviewedAt).Hours() / 24))
}

func nextEaseFactor(ef float64, quality int) float64 {
	q := float64(MaxQuality - quality)
	return math.Max(MinEaseFactor, ef+(0.1-q*(0.08+q*0.02)))
}

func (s *ReviewScheduler) clampInterval(days int) int {
	if days < 1 {
		return 1
	}
	if days > s.cfg.MaxIntervalDays {
		return s.cfg.MaxIntervalDays
	}
	return days
}

// jitter 以 userID、cardID 和复习次数为种子做确定性的 ±JitterRatio 扰动，
// 同一张卡在不同用户之间错开到期日
func (s *ReviewScheduler) jitter(card model.ReviewCard, days int) int {
	if s.cfg.JitterRatio == 0 {
		return days
	}
	h := fnv.New64a()
	h.Write([]byte(card.UserID))
	h.Write([]byte{0})
	h.Write([]byte(card.CardID))
	h.Write([]byte{0, byte(card.Repetitions), byte(card.Repetitions >> 8)})
	r := rand.New(rand.NewSource(int64(h.Sum64())))
	factor := (r.Float64()*2 - 1) * s.cfg.JitterRatio
	return int(math.Round(float64(days) * (1 + factor)))
}

// QualityFromResult 客户端未给出回忆质量时，由练习结果推导
func QualityFromResult(score float64, isCorrect bool) int {
	if isCorrect {
		switch {
		case score >= 90:
			return 5
		case score >= 70:
			return 4
		default:
			return 3
		}
	}
	switch {
	case score >= 50:
		return 2
	case score >= 20:
		return 1
	default:
		return 0
	}
}

// SortByDue 按到期时间升序，同一时刻按 cardID 排序
func SortByDue(cards []model.ReviewCard) {
	sort.SliceStable(cards, func(i, j int) bool {
		if !cards[i].DueAt.Equal(cards[j].DueAt) {
			return cards[i].DueAt.Before(cards[j].DueAt)
		}
		return cards[i].CardID < cards[j].CardID
	})
}
