package model

import "time"

// Skill 语言技能
type Skill string

const (
	SkillVocabulary Skill = "vocabulary"
	SkillGrammar    Skill = "grammar"
	SkillReading    Skill = "reading"
	SkillListening  Skill = "listening"
	SkillSpeaking   Skill = "speaking"
	SkillWriting    Skill = "writing"
)

var AllSkills = []Skill{SkillVocabulary, SkillGrammar, SkillReading, SkillListening, SkillSpeaking, SkillWriting}

func (s Skill) Valid() bool {
	for _, k := range AllSkills {
		if k == s {
			return true
		}
	}
	return false
}

// Tier CEFR 等级
type Tier string

const (
	TierA1 Tier = "A1"
	TierA2 Tier = "A2"
	TierB1 Tier = "B1"
	TierB2 Tier = "B2"
	TierC1 Tier = "C1"
	TierC2 Tier = "C2"
)

var AllTiers = []Tier{TierA1, TierA2, TierB1, TierB2, TierC1, TierC2}

// Rank 返回等级序号，未知等级返回 -1
func (t Tier) Rank() int {
	for i, k := range AllTiers {
		if k == t {
			return i
		}
	}
	return -1
}

func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// Next 返回上一级；已是最高级或未知等级时 ok 为 false
func (t Tier) Next() (Tier, bool) {
	r := t.Rank()
	if r < 0 || r == len(AllTiers)-1 {
		return t, false
	}
	return AllTiers[r+1], true
}

// SkillScore 每个 (用户, 技能) 一条，score 为近期正确率的指数加权平均
// swagger:model SkillScore
type SkillScore struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID             string    `gorm:"size:64;not null;uniqueIndex:idx_skill_scores_user_skill,priority:1" json:"-"`
	Skill              Skill     `gorm:"size:32;not null;uniqueIndex:idx_skill_scores_user_skill,priority:2" json:"skill"`
	Score              float64   `gorm:"not null" json:"score"`
	ExercisesCompleted int       `gorm:"not null" json:"exercisesCompleted"`
	LastUpdatedAt      time.Time `gorm:"precision:3" json:"lastUpdatedAt"`
	CreatedAt          time.Time `json:"-"`
	UpdatedAt          time.Time `json:"-"`
}

func (SkillScore) TableName() string {
	return "skill_scores"
}

// ProficiencyProfile 每个用户一条；AssessedTier 由技能分数推导，TotalXP 只是游戏化计数
// swagger:model ProficiencyProfile
type ProficiencyProfile struct {
	VersionedModel
	UserID       string               `gorm:"size:64;not null;uniqueIndex" json:"userId"`
	AssessedTier Tier                 `gorm:"size:2;not null" json:"assessedTier"`
	TotalXP      int                  `gorm:"not null" json:"totalXp"`
	Skills       map[Skill]SkillScore `gorm:"-" json:"skills"`
}

func (ProficiencyProfile) TableName() string {
	return "proficiency_profiles"
}

func (p ProficiencyProfile) Clone() ProficiencyProfile {
	out := p
	out.Skills = make(map[Skill]SkillScore, len(p.Skills))
	for k, v := range p.Skills {
		out.Skills[k] = v
	}
	return out
}
