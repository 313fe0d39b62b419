package engine

import (
	"fmt"
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reviewNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func noJitter() *ReviewScheduler {
	return NewReviewScheduler(SchedulerConfig{JitterRatio: 0, MaxIntervalDays: 365})
}

func TestSchedule_ThirdRepetitionUsesEaseFactor(t *testing.T) {
	card := model.ReviewCard{CardID: "word-42", EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2}

	next, err := noJitter().Schedule(card, 4, reviewNow)
	require.NoError(t, err)

	assert.Equal(t, 3, next.Repetitions)
	assert.InDelta(t, 2.5, next.EaseFactor, 1e-9)
	assert.Equal(t, 15, next.IntervalDays)
	assert.Equal(t, reviewNow.AddDate(0, 0, 15), next.DueAt)
	require.NotNil(t, next.LastReviewedAt)
	assert.Equal(t, reviewNow, *next.LastReviewedAt)
}

func TestSchedule_FirstAndSecondSuccess(t *testing.T) {
	s := noJitter()
	card := NewReviewCard("u1", "c1", reviewNow)

	first, err := s.Schedule(card, 5, reviewNow)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Repetitions)
	assert.Equal(t, 1, first.IntervalDays)
	assert.InDelta(t, 2.6, first.EaseFactor, 1e-9)

	second, err := s.Schedule(first, 3, reviewNow.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Repetitions)
	assert.Equal(t, 6, second.IntervalDays)
	assert.InDelta(t, 2.46, second.EaseFactor, 1e-9)
}

func TestSchedule_FailedRecallResets(t *testing.T) {
	card := model.ReviewCard{CardID: "c", EaseFactor: 2.2, IntervalDays: 40, Repetitions: 6}

	for q := 0; q < PassThreshold; q++ {
		t.Run(fmt.Sprintf("quality_%d", q), func(t *testing.T) {
			next, err := noJitter().Schedule(card, q, reviewNow)
			require.NoError(t, err)
			assert.Equal(t, 0, next.Repetitions)
			assert.Equal(t, 1, next.IntervalDays)
			assert.Less(t, next.EaseFactor, card.EaseFactor)
		})
	}
}

func TestSchedule_EaseFactorFloor(t *testing.T) {
	card := model.ReviewCard{CardID: "hard", EaseFactor: 1.35, IntervalDays: 3, Repetitions: 3}

	next, err := noJitter().Schedule(card, 0, reviewNow)
	require.NoError(t, err)
	assert.Equal(t, MinEaseFactor, next.EaseFactor)
}

func TestSchedule_InvariantsForAllQualities(t *testing.T) {
	s := NewReviewScheduler(DefaultSchedulerConfig())
	starts := []model.ReviewCard{
		NewReviewCard("u", "fresh", reviewNow),
		{CardID: "mid", EaseFactor: 1.3, IntervalDays: 1, Repetitions: 1},
		{CardID: "long", EaseFactor: 2.9, IntervalDays: 300, Repetitions: 9},
	}

	for _, start := range starts {
		for q := MinQuality; q <= MaxQuality; q++ {
			card := start
			// 连续多次同一质量的复习
			for i := 0; i < 12; i++ {
				next, err := s.Schedule(card, q, reviewNow)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, next.EaseFactor, MinEaseFactor)
				assert.GreaterOrEqual(t, next.IntervalDays, 1)
				assert.LessOrEqual(t, next.IntervalDays, DefaultMaxIntervalDays)
				card = next
			}
		}
	}
}

func TestSchedule_RejectsQualityOutOfRange(t *testing.T) {
	card := NewReviewCard("u", "c", reviewNow)
	for _, q := range []int{-1, 6, 100} {
		got, err := noJitter().Schedule(card, q, reviewNow)
		assert.ErrorIs(t, err, util.ErrInvalidInput)
		assert.Equal(t, card, got)
	}
}

func TestSchedule_IntervalCapped(t *testing.T) {
	card := model.ReviewCard{CardID: "old", EaseFactor: 2.5, IntervalDays: 300, Repetitions: 8}

	next, err := noJitter().Schedule(card, 5, reviewNow)
	require.NoError(t, err)
	assert.Equal(t, 365, next.IntervalDays)
	assert.Equal(t, reviewNow.AddDate(0, 0, 365), next.DueAt)
}

func TestSchedule_JitterDeterministicAndBounded(t *testing.T) {
	s := NewReviewScheduler(SchedulerConfig{JitterRatio: 0.1, MaxIntervalDays: 365})
	card := model.ReviewCard{UserID: "u1", CardID: "vocab-jitter", EaseFactor: 2.5, IntervalDays: 40, Repetitions: 4}

	a, err := s.Schedule(card, 4, reviewNow)
	require.NoError(t, err)
	b, err := s.Schedule(card, 4, reviewNow)
	require.NoError(t, err)
	assert.Equal(t, a.DueAt, b.DueAt)

	base := 100 // round(40 * 2.5)
	assert.Equal(t, base, a.IntervalDays)
	assert.GreaterOrEqual(t, ScheduledDays(a), 90)
	assert.LessOrEqual(t, ScheduledDays(a), 110)

	spread := map[int]bool{}
	for i := 0; i < 50; i++ {
		c := card
		c.CardID = fmt.Sprintf("card-%d", i)
		n, err := s.Schedule(c, 4, reviewNow)
		require.NoError(t, err)
		assert.Equal(t, base, n.IntervalDays)
		assert.InDelta(t, base, ScheduledDays(n), 10)
		spread[ScheduledDays(n)] = true
	}
	assert.Greater(t, len(spread), 1, "different cards should land on different days")
}

func TestSchedule_JitterDoesNotCompound(t *testing.T) {
	jittered := NewReviewScheduler(SchedulerConfig{JitterRatio: 0.1, MaxIntervalDays: 365})
	plain := noJitter()

	for i := 0; i < 20; i++ {
		card := NewReviewCard("learner", fmt.Sprintf("deck-%d", i), reviewNow)
		ref := card
		at := reviewNow
		for step := 1; step <= 6; step++ {
			var err error
			card, err = jittered.Schedule(card, 5, at)
			require.NoError(t, err)
			ref, err = plain.Schedule(ref, 5, at)
			require.NoError(t, err)

			// SM-2 状态与无扰动时一致
			assert.Equal(t, ref.IntervalDays, card.IntervalDays, "step %d", step)
			assert.Equal(t, ref.Repetitions, card.Repetitions)
			assert.InDelta(t, ref.EaseFactor, card.EaseFactor, 1e-9)

			want := float64(ref.IntervalDays)
			assert.InDelta(t, want, float64(ScheduledDays(card)), want*0.1+0.5, "card %s step %d", card.CardID, step)
			at = card.DueAt
		}
	}
}

func TestSchedule_JitterSeededPerUser(t *testing.T) {
	s := NewReviewScheduler(SchedulerConfig{JitterRatio: 0.1, MaxIntervalDays: 365})

	days := map[int]bool{}
	for i := 0; i < 30; i++ {
		card := model.ReviewCard{UserID: fmt.Sprintf("user-%d", i), CardID: "shared-word", EaseFactor: 2.5, IntervalDays: 40, Repetitions: 4}
		a, err := s.Schedule(card, 4, reviewNow)
		require.NoError(t, err)
		b, err := s.Schedule(card, 4, reviewNow)
		require.NoError(t, err)
		assert.Equal(t, a.DueAt, b.DueAt)
		days[ScheduledDays(a)] = true
	}
	assert.Greater(t, len(days), 1, "the same card should be spread across users")
}

func TestSchedule_TruncatesToMillisecond(t *testing.T) {
	at := reviewNow.Add(123456789 * time.Nanosecond)
	card := NewReviewCard("u", "c", at)
	assert.Equal(t, reviewNow.Add(123*time.Millisecond), card.DueAt)

	next, err := noJitter().Schedule(card, 5, at)
	require.NoError(t, err)
	require.NotNil(t, next.LastReviewedAt)
	assert.Equal(t, reviewNow.Add(123*time.Millisecond), *next.LastReviewedAt)
	assert.Equal(t, 0, next.DueAt.Nanosecond()%int(time.Millisecond))
}

func TestSchedule_DoesNotMutateInput(t *testing.T) {
	reviewed := reviewNow.Add(-48 * time.Hour)
	card := model.ReviewCard{CardID: "c", EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2, LastReviewedAt: &reviewed}

	_, err := noJitter().Schedule(card, 5, reviewNow)
	require.NoError(t, err)
	assert.Equal(t, 2, card.Repetitions)
	assert.Equal(t, reviewNow.Add(-48*time.Hour), *card.LastReviewedAt)
}

func TestQualityFromResult(t *testing.T) {
	tests := []struct {
		score   float64
		correct bool
		want    int
	}{
		{100, true, 5},
		{90, true, 5},
		{75, true, 4},
		{40, true, 3},
		{60, false, 2},
		{30, false, 1},
		{0, false, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QualityFromResult(tt.score, tt.correct), "score=%v correct=%v", tt.score, tt.correct)
	}
}

func TestSortByDue(t *testing.T) {
	cards := []model.ReviewCard{
		{CardID: "b", DueAt: reviewNow},
		{CardID: "c", DueAt: reviewNow.Add(-time.Hour)},
		{CardID: "a", DueAt: reviewNow},
	}
	SortByDue(cards)
	assert.Equal(t, []string{"c", "a", "b"}, []string{cards[0].CardID, cards[1].CardID, cards[2].CardID})
}
