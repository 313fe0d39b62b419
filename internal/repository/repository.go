package repository

import (
	"context"
	"lingua_progress/internal/model"
	"time"
)

// ProgressStore 学习进度状态的读写接口。
//
// Get 系列在记录不存在时返回 util.ErrNotFound；Put 系列按 Version 做乐观锁检查：
// Version 为 0 表示新建，否则只有库中版本与之相同时才会写入，写入成功后 Version 加一。
// 版本不一致返回 util.ErrConcurrentModification，存储故障返回 *util.RepositoryError。
type ProgressStore interface {
	GetReviewCard(ctx context.Context, userID, cardID string) (*model.ReviewCard, error)
	PutReviewCard(ctx context.Context, card *model.ReviewCard) error
	// ListDueReviewCards 未归档且 dueAt <= before 的卡片，按 dueAt、cardId 升序
	ListDueReviewCards(ctx context.Context, userID string, before time.Time, limit int) ([]model.ReviewCard, error)

	GetStreakState(ctx context.Context, userID string) (*model.StreakState, error)
	PutStreakState(ctx context.Context, state *model.StreakState) error

	GetProficiencyProfile(ctx context.Context, userID string) (*model.ProficiencyProfile, error)
	PutProficiencyProfile(ctx context.Context, profile *model.ProficiencyProfile) error

	AppendEvent(ctx context.Context, event *model.LearningEventLog) error
}

// ProgressRepository 在 ProgressStore 之上提供按用户划分的原子操作
type ProgressRepository interface {
	ProgressStore
	// Atomically 在同一事务中执行 fn，fn 返回错误时全部回滚
	Atomically(ctx context.Context, userID string, fn func(store ProgressStore) error) error
	Ping(ctx context.Context) error
}
