package service

import (
	"lingua_progress/internal/config"
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseProgressConfig() config.ProgressConfig {
	return config.ProgressConfig{
		DefaultTimezone: "Europe/Madrid",
		DueReviewLimit:  50,
		Scheduler:       config.SchedulerConfig{JitterRatio: 0.05, MaxIntervalDays: 180},
		Streak:          config.StreakConfig{Milestones: []int{3, 10}, FreezeGrantEvery: 10, MaxFreezes: 2},
		Proficiency: config.ProficiencyConfig{
			Alpha:        0.5,
			SkillWeights: map[string]float64{"vocabulary": 2},
			Tiers: map[string]config.TierConfig{
				"b1": {MinAverage: 70, MinExercisesPerSkill: 5, MinFloorPerSkill: 60, RequiredSkills: []string{"vocabulary", "Grammar"}},
			},
		},
		XP: config.XPConfig{ExerciseCorrect: 8, ExerciseIncorrect: 1, HighScoreBonus: 4, HighScoreThreshold: 95, LessonCompleted: 30, StreakMilestoneBonus: 25},
	}
}

func TestRulesFromConfig(t *testing.T) {
	rules, err := RulesFromConfig(baseProgressConfig())
	require.NoError(t, err)

	assert.Equal(t, "Europe/Madrid", rules.DefaultTimezone)
	assert.Equal(t, 50, rules.DueReviewLimit)
	assert.Equal(t, 0.05, rules.Scheduler.JitterRatio)
	assert.Equal(t, 180, rules.Scheduler.MaxIntervalDays)
	assert.Equal(t, []int{3, 10}, rules.Streak.Milestones)
	assert.Equal(t, 2, rules.Streak.MaxFreezes)
	assert.Equal(t, 0.5, rules.Proficiency.Alpha)
	assert.Equal(t, 2.0, rules.Proficiency.SkillWeights[model.SkillVocabulary])

	require.Contains(t, rules.Proficiency.Tiers, model.TierB1)
	b1 := rules.Proficiency.Tiers[model.TierB1]
	assert.Equal(t, 70.0, b1.MinAverage)
	assert.Equal(t, []model.Skill{model.SkillVocabulary, model.SkillGrammar}, b1.RequiredSkills)

	assert.Equal(t, 12, rules.XP.exerciseXP(true, 99))
	assert.Equal(t, 1, rules.XP.exerciseXP(false, 40))
}

func TestRulesFromConfig_EmptyKeepsDefaults(t *testing.T) {
	rules, err := RulesFromConfig(config.ProgressConfig{})
	require.NoError(t, err)

	def := DefaultRules()
	assert.Equal(t, def.Proficiency.Tiers, rules.Proficiency.Tiers)
	assert.Equal(t, def.Proficiency.Alpha, rules.Proficiency.Alpha)
	assert.Equal(t, "UTC", rules.DefaultTimezone)
	assert.Equal(t, util.DefaultDueReviewLimit, rules.DueReviewLimit)
}

func TestRulesFromConfig_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.ProgressConfig)
	}{
		{"bad timezone", func(c *config.ProgressConfig) { c.DefaultTimezone = "Mars/Base" }},
		{"jitter too large", func(c *config.ProgressConfig) { c.Scheduler.JitterRatio = 1.5 }},
		{"alpha out of range", func(c *config.ProgressConfig) { c.Proficiency.Alpha = 2 }},
		{"unknown weighted skill", func(c *config.ProgressConfig) { c.Proficiency.SkillWeights = map[string]float64{"dancing": 1} }},
		{"non-positive weight", func(c *config.ProgressConfig) { c.Proficiency.SkillWeights = map[string]float64{"reading": 0} }},
		{"unknown tier", func(c *config.ProgressConfig) { c.Proficiency.Tiers = map[string]config.TierConfig{"d9": {}} }},
		{"a1 has no threshold", func(c *config.ProgressConfig) { c.Proficiency.Tiers = map[string]config.TierConfig{"a1": {}} }},
		{"unknown required skill", func(c *config.ProgressConfig) {
			c.Proficiency.Tiers = map[string]config.TierConfig{"c1": {RequiredSkills: []string{"chess"}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseProgressConfig()
			tt.mutate(&cfg)
			_, err := RulesFromConfig(cfg)
			assert.ErrorIs(t, err, util.ErrInvalidInput)
		})
	}
}
