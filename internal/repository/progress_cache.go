package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"lingua_progress/internal/model"
	"lingua_progress/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	streakCacheKey      = "progress:streak:%s"
	proficiencyCacheKey = "progress:proficiency:%s"
	// generationKey 每次写入后自增，回填前比对，避免把旧状态写回缓存
	generationKey = "progress:gen:%s"
	generationTTL = 24 * time.Hour
)

var errStaleGeneration = errors.New("progress cache generation changed")

// ProgressCache 只读视图的 Redis 缓存。缓存的是原始状态而不是计算结果，
// 因此 streakStatus 等随时间变化的字段每次读取时重新计算。
// 缓存内容不带版本号，不能用于写路径。nil 接收者等价于始终未命中。
//
// 读路径：未命中时先取 Generation，再查库，最后带着该代数回填。
// 若期间发生过 Invalidate，回填会被放弃。
type ProgressCache struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewProgressCache(rdb *redis.Client, ttl time.Duration) *ProgressCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ProgressCache{Redis: rdb, TTL: ttl}
}

func (c *ProgressCache) enabled() bool {
	return c != nil && c.Redis != nil
}

func (c *ProgressCache) GetStreakState(ctx context.Context, userID string) (*model.StreakState, bool) {
	var state model.StreakState
	if !c.get(ctx, fmt.Sprintf(streakCacheKey, userID), &state) {
		return nil, false
	}
	state.UserID = userID
	return &state, true
}

func (c *ProgressCache) SetStreakState(ctx context.Context, state *model.StreakState, gen int64) {
	c.set(ctx, state.UserID, fmt.Sprintf(streakCacheKey, state.UserID), state, gen)
}

func (c *ProgressCache) GetProficiencyProfile(ctx context.Context, userID string) (*model.ProficiencyProfile, bool) {
	var profile model.ProficiencyProfile
	if !c.get(ctx, fmt.Sprintf(proficiencyCacheKey, userID), &profile) {
		return nil, false
	}
	profile.UserID = userID
	if profile.Skills == nil {
		profile.Skills = map[model.Skill]model.SkillScore{}
	}
	return &profile, true
}

func (c *ProgressCache) SetProficiencyProfile(ctx context.Context, profile *model.ProficiencyProfile, gen int64) {
	c.set(ctx, profile.UserID, fmt.Sprintf(proficiencyCacheKey, profile.UserID), profile, gen)
}

// Generation 当前缓存代数，必须在查库之前读取。读取失败返回 -1，此时不会回填
func (c *ProgressCache) Generation(ctx context.Context, userID string) int64 {
	if !c.enabled() {
		return -1
	}
	gen, err := c.Redis.Get(ctx, fmt.Sprintf(generationKey, userID)).Int64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		logger.Log.Warn("Progress cache generation read failed", zap.String("userID", userID), zap.Error(err))
		return -1
	}
	return gen
}

// Invalidate 写事务提交后调用
func (c *ProgressCache) Invalidate(ctx context.Context, userID string) {
	if !c.enabled() {
		return
	}
	genKey := fmt.Sprintf(generationKey, userID)
	keys := []string{fmt.Sprintf(streakCacheKey, userID), fmt.Sprintf(proficiencyCacheKey, userID)}
	_, err := c.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		logger.Log.Warn("Failed to invalidate progress cache", zap.String("userID", userID), zap.Error(err))
	}
}

func (c *ProgressCache) get(ctx context.Context, key string, dest interface{}) bool {
	if !c.enabled() {
		return false
	}
	raw, err := c.Redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("Progress cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logger.Log.Warn("Dropping corrupt progress cache entry", zap.String("key", key), zap.Error(err))
		c.Redis.Del(ctx, key)
		return false
	}
	return true
}

func (c *ProgressCache) set(ctx context.Context, userID, key string, value interface{}, gen int64) {
	if !c.enabled() || gen < 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Log.Warn("Failed to encode progress cache entry", zap.String("key", key), zap.Error(err))
		return
	}

	genKey := fmt.Sprintf(generationKey, userID)
	err = c.Redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.TTL)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		logger.Log.Debug("Skipped stale progress cache fill", zap.String("key", key), zap.Int64("generation", gen))
	default:
		logger.Log.Warn("Progress cache write failed", zap.String("key", key), zap.Error(err))
	}
}
