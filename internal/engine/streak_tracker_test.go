package engine

import (
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"math/rand"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(y int, m time.Month, day int) model.Date {
	return model.NewDate(y, m, day)
}

func newTracker() *StreakTracker {
	return NewStreakTracker(DefaultStreakConfig())
}

func TestRecordActivity_FirstEver(t *testing.T) {
	state, notes := newTracker().RecordActivity(NewStreakState("u1", "UTC"), d(2024, 1, 10))

	assert.Equal(t, 1, state.CurrentStreak)
	assert.Equal(t, 1, state.LongestStreak)
	assert.Equal(t, d(2024, 1, 10), state.LastActiveDate)
	assert.Empty(t, notes)
}

func TestRecordActivity_SameDayIsNoop(t *testing.T) {
	tr := newTracker()
	start := model.StreakState{UserID: "u1", Timezone: "UTC", CurrentStreak: 3, LongestStreak: 8, LastActiveDate: d(2024, 1, 10)}

	state, notes := tr.RecordActivity(start, d(2024, 1, 10))
	assert.Equal(t, start, state)
	assert.Nil(t, notes)

	// 较早的日期同样不改变状态，lastActiveDate 不回退
	state, _ = tr.RecordActivity(start, d(2024, 1, 2))
	assert.Equal(t, start, state)
}

func TestRecordActivity_Continuing(t *testing.T) {
	start := model.StreakState{UserID: "u1", Timezone: "UTC", CurrentStreak: 3, LongestStreak: 3, LastActiveDate: d(2024, 1, 10)}

	state, notes := newTracker().RecordActivity(start, d(2024, 1, 11))
	assert.Equal(t, 4, state.CurrentStreak)
	assert.Equal(t, 4, state.LongestStreak)
	assert.Equal(t, d(2024, 1, 11), state.LastActiveDate)
	assert.Empty(t, notes)
}

func TestRecordActivity_MilestoneAtSeven(t *testing.T) {
	start := model.StreakState{UserID: "u1", Timezone: "UTC", CurrentStreak: 6, LongestStreak: 20, LastActiveDate: d(2024, 1, 10)}

	state, notes := newTracker().RecordActivity(start, d(2024, 1, 11))
	assert.Equal(t, 7, state.CurrentStreak)
	assert.Equal(t, 20, state.LongestStreak)
	require.Len(t, notes, 1)
	assert.Equal(t, NotifyMilestone, notes[0].Kind)
	assert.Equal(t, 7, notes[0].Streak)
}

func TestRecordActivity_FreezeGrantedEveryThirtyDays(t *testing.T) {
	tr := newTracker()
	state := model.StreakState{UserID: "u1", Timezone: "UTC", CurrentStreak: 29, LongestStreak: 29, LastActiveDate: d(2024, 1, 10)}

	state, notes := tr.RecordActivity(state, d(2024, 1, 11))
	assert.Equal(t, 30, state.CurrentStreak)
	assert.Equal(t, 1, state.FreezesAvailable)
	kinds := []NotificationKind{}
	for _, n := range notes {
		kinds = append(kinds, n.Kind)
	}
	assert.ElementsMatch(t, []NotificationKind{NotifyMilestone, NotifyFreezeEarned}, kinds)

	state.CurrentStreak = 59
	state, _ = tr.RecordActivity(state, d(2024, 1, 12))
	assert.Equal(t, 60, state.CurrentStreak)
	assert.Equal(t, 2, state.FreezesAvailable)
}

func TestRecordActivity_FreezeCap(t *testing.T) {
	tr := NewStreakTracker(StreakConfig{FreezeGrantEvery: 30, MaxFreezes: 1})
	state := model.StreakState{UserID: "u1", CurrentStreak: 59, LongestStreak: 59, LastActiveDate: d(2024, 1, 10), FreezesAvailable: 1}

	state, notes := tr.RecordActivity(state, d(2024, 1, 11))
	assert.Equal(t, 1, state.FreezesAvailable)
	assert.Empty(t, notes)
}

func TestRecordActivity_BrokenAfterGap(t *testing.T) {
	start := model.StreakState{UserID: "u1", Timezone: "UTC", CurrentStreak: 5, LongestStreak: 5, LastActiveDate: d(2024, 1, 10)}

	state, notes := newTracker().RecordActivity(start, d(2024, 1, 12))
	assert.Equal(t, 1, state.CurrentStreak)
	assert.Equal(t, 5, state.LongestStreak)
	assert.Equal(t, d(2024, 1, 12), state.LastActiveDate)
	require.Len(t, notes, 1)
	assert.Equal(t, NotifyBroken, notes[0].Kind)
	assert.Equal(t, 5, notes[0].Streak)
}

func TestRecordActivity_FreezePreservesStreak(t *testing.T) {
	tr := newTracker()
	start := model.StreakState{UserID: "u1", Timezone: "UTC", CurrentStreak: 5, LongestStreak: 5, LastActiveDate: d(2024, 1, 10), FreezesAvailable: 1}

	frozen, err := tr.UseFreeze(start, d(2024, 1, 11))
	require.NoError(t, err)
	assert.Equal(t, 0, frozen.FreezesAvailable)
	assert.True(t, frozen.FreezeUsedDates.Contains(d(2024, 1, 11)))

	assert.Equal(t, TransitionFrozen, tr.Classify(frozen, d(2024, 1, 12)))
	state, notes := tr.RecordActivity(frozen, d(2024, 1, 12))
	assert.Equal(t, 5, state.CurrentStreak)
	assert.Equal(t, 5, state.LongestStreak)
	assert.Equal(t, 0, state.FreezesAvailable)
	assert.Equal(t, d(2024, 1, 12), state.LastActiveDate)
	require.Len(t, notes, 1)
	assert.Equal(t, NotifyFrozen, notes[0].Kind)

	// 之后的连续学习照常累加
	state, _ = tr.RecordActivity(state, d(2024, 1, 13))
	assert.Equal(t, 6, state.CurrentStreak)
}

func TestRecordActivity_PartialFreezeStillBreaks(t *testing.T) {
	start := model.StreakState{
		UserID: "u1", CurrentStreak: 9, LongestStreak: 12, LastActiveDate: d(2024, 1, 10),
		FreezeUsedDates: model.DateSet{d(2024, 1, 11)},
	}

	state, _ := newTracker().RecordActivity(start, d(2024, 1, 13))
	assert.Equal(t, 1, state.CurrentStreak)
	assert.Equal(t, 12, state.LongestStreak)
}

func TestUseFreeze(t *testing.T) {
	tr := newTracker()
	base := model.StreakState{UserID: "u1", CurrentStreak: 4, LongestStreak: 4, LastActiveDate: d(2024, 1, 10)}

	t.Run("no freeze available", func(t *testing.T) {
		got, err := tr.UseFreeze(base, d(2024, 1, 11))
		assert.ErrorIs(t, err, util.ErrNoFreezeAvailable)
		assert.Equal(t, base, got)
	})

	t.Run("already frozen date is idempotent", func(t *testing.T) {
		s := base
		s.FreezesAvailable = 1
		s.FreezeUsedDates = model.DateSet{d(2024, 1, 11)}
		got, err := tr.UseFreeze(s, d(2024, 1, 11))
		require.NoError(t, err)
		assert.Equal(t, 1, got.FreezesAvailable)
	})

	t.Run("date not after last activity", func(t *testing.T) {
		s := base
		s.FreezesAvailable = 2
		_, err := tr.UseFreeze(s, d(2024, 1, 10))
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("input is not mutated", func(t *testing.T) {
		s := base
		s.FreezesAvailable = 1
		_, err := tr.UseFreeze(s, d(2024, 1, 11))
		require.NoError(t, err)
		assert.Equal(t, 1, s.FreezesAvailable)
		assert.Empty(t, s.FreezeUsedDates)
	})
}

func TestGetStatus(t *testing.T) {
	tr := newTracker()
	state := model.StreakState{UserID: "u1", Timezone: "UTC", CurrentStreak: 4, LongestStreak: 4, LastActiveDate: d(2024, 1, 10)}

	tests := []struct {
		name string
		now  time.Time
		want StreakStatus
	}{
		{"same day", time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC), StreakActive},
		{"next day", time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC), StreakAtRisk},
		{"two days later", time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC), StreakBroken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.GetStatus(state, tt.now))
		})
	}
}

func TestGetStatus_Idempotent(t *testing.T) {
	tr := newTracker()
	state := model.StreakState{UserID: "u1", Timezone: "Europe/Berlin", CurrentStreak: 2, LongestStreak: 2, LastActiveDate: d(2024, 1, 10)}
	now := time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC)

	first := tr.GetStatus(state, now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, tr.GetStatus(state, now))
	}
}

func TestGetStatus_UsesStateTimezone(t *testing.T) {
	tr := newTracker()
	// 2024-01-10 23:30 UTC 在东京已是 1 月 11 日
	now := time.Date(2024, 1, 10, 23, 30, 0, 0, time.UTC)
	state := model.StreakState{UserID: "u1", Timezone: "Asia/Tokyo", CurrentStreak: 2, LongestStreak: 2, LastActiveDate: d(2024, 1, 10)}

	assert.Equal(t, StreakAtRisk, tr.GetStatus(state, now))
	state.Timezone = "UTC"
	assert.Equal(t, StreakActive, tr.GetStatus(state, now))
}

func TestGetStatus_FreezeBridgesToToday(t *testing.T) {
	tr := newTracker()
	state := model.StreakState{
		UserID: "u1", Timezone: "UTC", CurrentStreak: 4, LongestStreak: 4, LastActiveDate: d(2024, 1, 10),
		FreezeUsedDates: model.DateSet{d(2024, 1, 11)},
	}
	now := time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, StreakAtRisk, tr.GetStatus(state, now))
	assert.Equal(t, 4, tr.EffectiveStreak(state, now))
	assert.Equal(t, 0, tr.EffectiveStreak(state, now.AddDate(0, 0, 1)))
}

func TestGetStatus_NoActivity(t *testing.T) {
	assert.Equal(t, StreakBroken, newTracker().GetStatus(NewStreakState("u1", ""), time.Now()))
}

func TestRecordActivity_LongestNeverDecreases(t *testing.T) {
	tr := newTracker()
	rng := rand.New(rand.NewSource(7))
	state := NewStreakState("u1", "UTC")
	day := d(2024, 1, 1)

	for i := 0; i < 500; i++ {
		day = day.AddDays(rng.Intn(4))
		if rng.Intn(10) == 0 {
			state.FreezesAvailable++
			if f, err := tr.UseFreeze(state, day.AddDays(1)); err == nil {
				state = f
			}
		}
		prevLongest := state.LongestStreak
		prevLast := state.LastActiveDate
		state, _ = tr.RecordActivity(state, day)

		require.GreaterOrEqual(t, state.LongestStreak, prevLongest)
		require.GreaterOrEqual(t, state.LongestStreak, state.CurrentStreak)
		require.False(t, state.LastActiveDate.Before(prevLast))
	}
}
