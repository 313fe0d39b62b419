package service

import (
	"lingua_progress/internal/config"
	"lingua_progress/internal/engine"
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"strings"

	"github.com/pkg/errors"
)

// XPRules 经验值只用于游戏化展示，不参与等级判定
type XPRules struct {
	ExerciseCorrect      int
	ExerciseIncorrect    int
	HighScoreBonus       int
	HighScoreThreshold   float64
	LessonCompleted      int
	StreakMilestoneBonus int
}

// Rules 引擎的全部可调参数，可整体热替换
type Rules struct {
	DefaultTimezone string
	DueReviewLimit  int
	Scheduler       engine.SchedulerConfig
	Streak          engine.StreakConfig
	Proficiency     engine.ProficiencyConfig
	XP              XPRules
}

func DefaultRules() Rules {
	return Rules{
		DefaultTimezone: "UTC",
		DueReviewLimit:  util.DefaultDueReviewLimit,
		Scheduler:       engine.DefaultSchedulerConfig(),
		Streak:          engine.DefaultStreakConfig(),
		Proficiency:     engine.DefaultProficiencyConfig(),
		XP: XPRules{
			ExerciseCorrect:      10,
			ExerciseIncorrect:    2,
			HighScoreBonus:       5,
			HighScoreThreshold:   90,
			LessonCompleted:      20,
			StreakMilestoneBonus: 50,
		},
	}
}

// RulesFromConfig 把配置文件中的 progress 段转换为引擎参数。
// viper 会把 map 的键转成小写，等级键在这里统一转回大写。
func RulesFromConfig(cfg config.ProgressConfig) (Rules, error) {
	rules := DefaultRules()

	if cfg.DefaultTimezone != "" {
		if _, err := engine.LoadLocation(cfg.DefaultTimezone); err != nil {
			return rules, errors.Wrap(err, "progress.default_timezone")
		}
		rules.DefaultTimezone = cfg.DefaultTimezone
	}
	if cfg.DueReviewLimit > 0 {
		rules.DueReviewLimit = cfg.DueReviewLimit
	}

	rules.Scheduler = engine.SchedulerConfig{
		JitterRatio:     cfg.Scheduler.JitterRatio,
		MaxIntervalDays: cfg.Scheduler.MaxIntervalDays,
	}
	if rules.Scheduler.JitterRatio < 0 || rules.Scheduler.JitterRatio >= 1 {
		return rules, errors.Wrapf(util.ErrInvalidInput, "progress.scheduler.jitter_ratio %v must be in [0,1)", cfg.Scheduler.JitterRatio)
	}
	if rules.Scheduler.MaxIntervalDays <= 0 {
		rules.Scheduler.MaxIntervalDays = engine.DefaultMaxIntervalDays
	}

	if len(cfg.Streak.Milestones) > 0 {
		rules.Streak.Milestones = cfg.Streak.Milestones
	}
	if cfg.Streak.FreezeGrantEvery >= 0 {
		rules.Streak.FreezeGrantEvery = cfg.Streak.FreezeGrantEvery
	}
	rules.Streak.MaxFreezes = cfg.Streak.MaxFreezes

	if cfg.Proficiency.Alpha != 0 {
		if cfg.Proficiency.Alpha < 0 || cfg.Proficiency.Alpha > 1 {
			return rules, errors.Wrapf(util.ErrInvalidInput, "progress.proficiency.alpha %v must be in (0,1]", cfg.Proficiency.Alpha)
		}
		rules.Proficiency.Alpha = cfg.Proficiency.Alpha
	}

	if len(cfg.Proficiency.SkillWeights) > 0 {
		rules.Proficiency.SkillWeights = make(map[model.Skill]float64, len(cfg.Proficiency.SkillWeights))
		for name, w := range cfg.Proficiency.SkillWeights {
			sk := model.Skill(strings.ToLower(name))
			if !sk.Valid() {
				return rules, errors.Wrapf(util.ErrInvalidInput, "unknown skill %q in skill_weights", name)
			}
			if w <= 0 {
				return rules, errors.Wrapf(util.ErrInvalidInput, "weight for %s must be positive", sk)
			}
			rules.Proficiency.SkillWeights[sk] = w
		}
	}

	if len(cfg.Proficiency.Tiers) > 0 {
		tiers := make(map[model.Tier]engine.TierRequirement, len(cfg.Proficiency.Tiers))
		for name, tc := range cfg.Proficiency.Tiers {
			tier := model.Tier(strings.ToUpper(name))
			if !tier.Valid() || tier == model.TierA1 {
				return rules, errors.Wrapf(util.ErrInvalidInput, "invalid tier %q in proficiency.tiers", name)
			}
			req := engine.TierRequirement{
				MinAverage:           tc.MinAverage,
				MinExercisesPerSkill: tc.MinExercisesPerSkill,
				MinFloorPerSkill:     tc.MinFloorPerSkill,
			}
			for _, s := range tc.RequiredSkills {
				sk := model.Skill(strings.ToLower(s))
				if !sk.Valid() {
					return rules, errors.Wrapf(util.ErrInvalidInput, "unknown required skill %q for tier %s", s, tier)
				}
				req.RequiredSkills = append(req.RequiredSkills, sk)
			}
			tiers[tier] = req
		}
		rules.Proficiency.Tiers = tiers
	}

	rules.XP = XPRules{
		ExerciseCorrect:      cfg.XP.ExerciseCorrect,
		ExerciseIncorrect:    cfg.XP.ExerciseIncorrect,
		HighScoreBonus:       cfg.XP.HighScoreBonus,
		HighScoreThreshold:   cfg.XP.HighScoreThreshold,
		LessonCompleted:      cfg.XP.LessonCompleted,
		StreakMilestoneBonus: cfg.XP.StreakMilestoneBonus,
	}
	return rules, nil
}

// engines 一组规则对应的计算组件，规则热更新时整体替换
type engines struct {
	rules       Rules
	scheduler   *engine.ReviewScheduler
	streak      *engine.StreakTracker
	proficiency *engine.ProficiencyEngine
}

func newEngines(rules Rules) *engines {
	return &engines{
		rules:       rules,
		scheduler:   engine.NewReviewScheduler(rules.Scheduler),
		streak:      engine.NewStreakTracker(rules.Streak),
		proficiency: engine.NewProficiencyEngine(rules.Proficiency),
	}
}

// exerciseXP 正确/错误基础分加高分奖励
func (r XPRules) exerciseXP(isCorrect bool, score float64) int {
	xp := r.ExerciseIncorrect
	if isCorrect {
		xp = r.ExerciseCorrect
	}
	if r.HighScoreBonus > 0 && score >= r.HighScoreThreshold {
		xp += r.HighScoreBonus
	}
	return xp
}
