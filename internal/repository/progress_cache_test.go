package repository

import (
	"context"
	"lingua_progress/internal/model"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ProgressCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewProgressCache(rdb, time.Minute), mr
}

func TestProgressCache_StreakRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.GetStreakState(ctx, "u1")
	assert.False(t, ok)

	gen := cache.Generation(ctx, "u1")
	assert.Equal(t, int64(0), gen)
	cache.SetStreakState(ctx, &model.StreakState{
		UserID: "u1", CurrentStreak: 4, LongestStreak: 10, Timezone: "Asia/Shanghai",
		LastActiveDate:  model.NewDate(2024, 1, 10),
		FreezeUsedDates: model.DateSet{model.NewDate(2024, 1, 8)},
	}, gen)
	assert.True(t, mr.Exists("progress:streak:u1"))
	assert.Equal(t, time.Minute, mr.TTL("progress:streak:u1"))

	got, ok := cache.GetStreakState(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 4, got.CurrentStreak)
	assert.Equal(t, model.NewDate(2024, 1, 10), got.LastActiveDate)
	assert.Equal(t, model.DateSet{model.NewDate(2024, 1, 8)}, got.FreezeUsedDates)
}

func TestProgressCache_ProfileAndInvalidate(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	gen := cache.Generation(ctx, "u1")
	cache.SetProficiencyProfile(ctx, &model.ProficiencyProfile{
		UserID: "u1", AssessedTier: model.TierB1, TotalXP: 300,
		Skills: map[model.Skill]model.SkillScore{model.SkillReading: {Skill: model.SkillReading, Score: 61, ExercisesCompleted: 30}},
	}, gen)
	cache.SetStreakState(ctx, &model.StreakState{UserID: "u1", CurrentStreak: 1}, gen)

	got, ok := cache.GetProficiencyProfile(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, model.TierB1, got.AssessedTier)
	assert.InDelta(t, 61, got.Skills[model.SkillReading].Score, 1e-9)

	cache.Invalidate(ctx, "u1")
	assert.False(t, mr.Exists("progress:streak:u1"))
	assert.False(t, mr.Exists("progress:proficiency:u1"))
	_, ok = cache.GetProficiencyProfile(ctx, "u1")
	assert.False(t, ok)
	assert.Equal(t, gen+1, cache.Generation(ctx, "u1"))
}

func TestProgressCache_FillAfterInvalidateIsDropped(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	// 读方在查库前拿到代数，随后写方提交并失效缓存
	gen := cache.Generation(ctx, "u1")
	cache.Invalidate(ctx, "u1")

	cache.SetStreakState(ctx, &model.StreakState{UserID: "u1", CurrentStreak: 1}, gen)
	cache.SetProficiencyProfile(ctx, &model.ProficiencyProfile{UserID: "u1", AssessedTier: model.TierA1}, gen)
	assert.False(t, mr.Exists("progress:streak:u1"))
	assert.False(t, mr.Exists("progress:proficiency:u1"))

	// 新的代数可以正常回填
	cache.SetStreakState(ctx, &model.StreakState{UserID: "u1", CurrentStreak: 2}, cache.Generation(ctx, "u1"))
	got, ok := cache.GetStreakState(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, 2, got.CurrentStreak)
}

func TestProgressCache_GenerationIsPerUser(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	gen := cache.Generation(ctx, "u2")
	cache.Invalidate(ctx, "u1")
	cache.SetStreakState(ctx, &model.StreakState{UserID: "u2", CurrentStreak: 3}, gen)
	assert.True(t, mr.Exists("progress:streak:u2"))
	assert.True(t, mr.TTL("progress:gen:u1") > 0)
}

func TestProgressCache_CorruptEntryIsMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	require.NoError(t, mr.Set("progress:streak:u1", "{not json"))

	_, ok := cache.GetStreakState(context.Background(), "u1")
	assert.False(t, ok)
	assert.False(t, mr.Exists("progress:streak:u1"))
}

func TestProgressCache_NilIsNoop(t *testing.T) {
	var cache *ProgressCache
	ctx := context.Background()

	assert.Nil(t, NewProgressCache(nil, time.Minute))
	assert.Equal(t, int64(-1), cache.Generation(ctx, "u1"))
	cache.SetStreakState(ctx, &model.StreakState{UserID: "u1"}, 0)
	cache.Invalidate(ctx, "u1")
	_, ok := cache.GetStreakState(ctx, "u1")
	assert.False(t, ok)
}

func TestProgressCache_RedisDownIsMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	assert.Equal(t, int64(-1), cache.Generation(context.Background(), "u1"))
	cache.SetStreakState(context.Background(), &model.StreakState{UserID: "u1"}, 0)
	_, ok := cache.GetStreakState(context.Background(), "u1")
	assert.False(t, ok)
}
