package engine

import (
	"fmt"
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"math"
	"time"

	"github.com/pkg/errors"
)

const DefaultAlpha = 0.3

// ExerciseResult 一次练习作答的结果
type ExerciseResult struct {
	Skill     model.Skill
	IsCorrect bool
	Score     float64
	Timestamp time.Time
}

// Validate 分数越界或技能未知时返回 ErrInvalidInput
func (r ExerciseResult) Validate() error {
	if !r.Skill.Valid() {
		return errors.Wrapf(util.ErrInvalidInput, "unknown skill %q", r.Skill)
	}
	if math.IsNaN(r.Score) || r.Score < 0 || r.Score > 100 {
		return errors.Wrapf(util.ErrInvalidInput, "score %v out of range [0,100]", r.Score)
	}
	return nil
}

// LevelChangeEvent 只在等级实际变化时产生
type LevelChangeEvent struct {
	PreviousTier model.Tier `json:"previousTier"`
	NewTier      model.Tier `json:"newTier"`
	Override     bool       `json:"override,omitempty"`
}

// TierRequirement 晋级到某一等级需同时满足的全部条件
type TierRequirement struct {
	MinAverage           float64
	MinExercisesPerSkill int
	MinFloorPerSkill     float64
	// RequiredSkills 必须参与评估的技能，未练习过的按 0 分 0 次计
	RequiredSkills []model.Skill
}

type ProficiencyConfig struct {
	Alpha        float64
	SkillWeights map[model.Skill]float64
	Tiers        map[model.Tier]TierRequirement
}

func DefaultProficiencyConfig() ProficiencyConfig {
	core := []model.Skill{model.SkillVocabulary, model.SkillGrammar}
	receptive := []model.Skill{model.SkillVocabulary, model.SkillGrammar, model.SkillReading, model.SkillListening}
	return ProficiencyConfig{
		Alpha: DefaultAlpha,
		Tiers: map[model.Tier]TierRequirement{
			model.TierA2: {MinAverage: 40, MinExercisesPerSkill: 10, MinFloorPerSkill: 25, RequiredSkills: core},
			model.TierB1: {MinAverage: 55, MinExercisesPerSkill: 25, MinFloorPerSkill: 40, RequiredSkills: receptive},
			model.TierB2: {MinAverage: 70, MinExercisesPerSkill: 50, MinFloorPerSkill: 55, RequiredSkills: model.AllSkills},
			model.TierC1: {MinAverage: 80, MinExercisesPerSkill: 100, MinFloorPerSkill: 70, RequiredSkills: model.AllSkills},
			model.TierC2: {MinAverage: 90, MinExercisesPerSkill: 200, MinFloorPerSkill: 80, RequiredSkills: model.AllSkills},
		},
	}
}

// TierProgress 距下一等级的差距，供界面展示
type TierProgress struct {
	Tier     model.Tier    `json:"tier"`
	Average  float64       `json:"average"`
	Eligible bool          `json:"eligible"`
	Skills   []model.Skill `json:"skills"`
	Blockers []string      `json:"blockers"`
}

type ProficiencyEngine struct {
	cfg ProficiencyConfig
}

func NewProficiencyEngine(cfg ProficiencyConfig) *ProficiencyEngine {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.Tiers == nil {
		cfg.Tiers = DefaultProficiencyConfig().Tiers
	}
	return &ProficiencyEngine{cfg: cfg}
}

func (e *ProficiencyEngine) Config() ProficiencyConfig {
	return e.cfg
}

func NewProficiencyProfile(userID string) model.ProficiencyProfile {
	return model.ProficiencyProfile{
		UserID:       userID,
		AssessedTier: model.TierA1,
		Skills:       map[model.Skill]model.SkillScore{},
	}
}

// RecordExercise 用指数移动平均更新技能分数，随后重新评估等级
func (e *ProficiencyEngine) RecordExercise(profile model.ProficiencyProfile, result ExerciseResult) (model.ProficiencyProfile, *LevelChangeEvent, error) {
	if err := result.Validate(); err != nil {
		return profile, nil, err
	}

	next := profile.Clone()
	if !next.AssessedTier.Valid() {
		next.AssessedTier = model.TierA1
	}

	sc := next.Skills[result.Skill]
	sc.UserID = next.UserID
	sc.Skill = result.Skill
	sc.Score = clampScore(e.cfg.Alpha*result.Score + (1-e.cfg.Alpha)*sc.Score)
	sc.ExercisesCompleted++
	sc.LastUpdatedAt = result.Timestamp.UTC().Truncate(time.Millisecond)
	next.Skills[result.Skill] = sc

	next, change := e.Evaluate(next)
	return next, change, nil
}

// Evaluate 最多晋升一级，不会因分数下降而降级
func (e *ProficiencyEngine) Evaluate(profile model.ProficiencyProfile) (model.ProficiencyProfile, *LevelChangeEvent) {
	target, ok := profile.AssessedTier.Next()
	if !ok {
		return profile, nil
	}
	if !e.Progress(profile, target).Eligible {
		return profile, nil
	}
	prev := profile.AssessedTier
	profile.AssessedTier = target
	return profile, &LevelChangeEvent{PreviousTier: prev, NewTier: target}
}

// NextTier 当前等级之上一级的评估结果，已是最高级时返回 nil
func (e *ProficiencyEngine) NextTier(profile model.ProficiencyProfile) *TierProgress {
	target, ok := profile.AssessedTier.Next()
	if !ok {
		return nil
	}
	p := e.Progress(profile, target)
	return &p
}

// Progress 按 tier 的门槛检查 profile
func (e *ProficiencyEngine) Progress(profile model.ProficiencyProfile, tier model.Tier) TierProgress {
	tp := TierProgress{Tier: tier, Blockers: []string{}}
	req, ok := e.cfg.Tiers[tier]
	if !ok {
		tp.Blockers = append(tp.Blockers, fmt.Sprintf("tier %s has no configured requirement", tier))
		return tp
	}

	skills := evaluatedSkills(profile, req)
	tp.Skills = skills
	if len(skills) == 0 {
		tp.Blockers = append(tp.Blockers, "no skills practiced yet")
		return tp
	}

	var weighted, totalWeight float64
	for _, sk := range skills {
		sc := profile.Skills[sk]
		w := e.weight(sk)
		weighted += w * sc.Score
		totalWeight += w

		if sc.ExercisesCompleted < req.MinExercisesPerSkill {
			tp.Blockers = append(tp.Blockers, fmt.Sprintf("%s: %d/%d exercises", sk, sc.ExercisesCompleted, req.MinExercisesPerSkill))
		}
		if sc.Score < req.MinFloorPerSkill {
			tp.Blockers = append(tp.Blockers, fmt.Sprintf("%s: score %.1f below floor %.1f", sk, sc.Score, req.MinFloorPerSkill))
		}
	}
	tp.Average = weighted / totalWeight
	if tp.Average < req.MinAverage {
		tp.Blockers = append(tp.Blockers, fmt.Sprintf("average %.1f below %.1f", tp.Average, req.MinAverage))
	}
	tp.Eligible = len(tp.Blockers) == 0
	return tp
}

// OverrideTier 管理员直接设定等级，是唯一可以降级的途径
func (e *ProficiencyEngine) OverrideTier(profile model.ProficiencyProfile, tier model.Tier) (model.ProficiencyProfile, *LevelChangeEvent, error) {
	if !tier.Valid() {
		return profile, nil, errors.Wrapf(util.ErrInvalidInput, "unknown tier %q", tier)
	}
	next := profile.Clone()
	if next.AssessedTier == tier {
		return next, nil, nil
	}
	prev := next.AssessedTier
	next.AssessedTier = tier
	return next, &LevelChangeEvent{PreviousTier: prev, NewTier: tier, Override: true}, nil
}

func (e *ProficiencyEngine) weight(sk model.Skill) float64 {
	if w, ok := e.cfg.SkillWeights[sk]; ok && w > 0 {
		return w
	}
	return 1
}

// evaluatedSkills 已练习过的技能与该等级要求技能的并集，按固定顺序返回
func evaluatedSkills(profile model.ProficiencyProfile, req TierRequirement) []model.Skill {
	required := make(map[model.Skill]bool, len(req.RequiredSkills))
	for _, sk := range req.RequiredSkills {
		required[sk] = true
	}
	var out []model.Skill
	for _, sk := range model.AllSkills {
		if _, practiced := profile.Skills[sk]; practiced || required[sk] {
			out = append(out, sk)
		}
	}
	return out
}

func clampScore(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
