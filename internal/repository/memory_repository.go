package repository

import (
	"context"
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type cardKey struct {
	userID string
	cardID string
}

// MemoryProgressRepository 进程内实现，用于测试和 database.driver=memory。
// 同一用户的写操作串行执行，不同用户互不阻塞。
type MemoryProgressRepository struct {
	mu       sync.RWMutex
	locks    map[string]chan struct{}
	cards    map[cardKey]model.ReviewCard
	streaks  map[string]model.StreakState
	profiles map[string]model.ProficiencyProfile
	events   []model.LearningEventLog
	nextID   uint
}

func NewMemoryProgressRepository() *MemoryProgressRepository {
	return &MemoryProgressRepository{
		locks:    make(map[string]chan struct{}),
		cards:    make(map[cardKey]model.ReviewCard),
		streaks:  make(map[string]model.StreakState),
		profiles: make(map[string]model.ProficiencyProfile),
	}
}

func (r *MemoryProgressRepository) userLock(userID string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = make(chan struct{}, 1)
		r.locks[userID] = l
	}
	return l
}

// Atomically 持有用户锁执行 fn，成功后一次性提交暂存的修改
func (r *MemoryProgressRepository) Atomically(ctx context.Context, userID string, fn func(store ProgressStore) error) error {
	l := r.userLock(userID)
	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return util.NewRepositoryError("acquire user lock", ctx.Err())
	}
	defer func() { <-l }()

	tx := &memoryTx{
		repo:     r,
		cards:    make(map[cardKey]model.ReviewCard),
		streaks:  make(map[string]model.StreakState),
		profiles: make(map[string]model.ProficiencyProfile),
	}
	if err := fn(tx); err != nil {
		return err
	}
	r.commit(tx)
	return nil
}

func (r *MemoryProgressRepository) commit(tx *memoryTx) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range tx.cards {
		r.cards[k] = v
	}
	for k, v := range tx.streaks {
		r.streaks[k] = v
	}
	for k, v := range tx.profiles {
		r.profiles[k] = v
	}
	r.events = append(r.events, tx.events...)
}

func (r *MemoryProgressRepository) Ping(ctx context.Context) error {
	return nil
}

// Events 已提交的事件流水副本
func (r *MemoryProgressRepository) Events(userID string) []model.LearningEventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.LearningEventLog
	for _, e := range r.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (r *MemoryProgressRepository) GetReviewCard(ctx context.Context, userID, cardID string) (*model.ReviewCard, error) {
	return (&memoryTx{repo: r}).GetReviewCard(ctx, userID, cardID)
}

func (r *MemoryProgressRepository) PutReviewCard(ctx context.Context, card *model.ReviewCard) error {
	return r.Atomically(ctx, card.UserID, func(s ProgressStore) error {
		return s.PutReviewCard(ctx, card)
	})
}

func (r *MemoryProgressRepository) ListDueReviewCards(ctx context.Context, userID string, before time.Time, limit int) ([]model.ReviewCard, error) {
	return (&memoryTx{repo: r}).ListDueReviewCards(ctx, userID, before, limit)
}

func (r *MemoryProgressRepository) GetStreakState(ctx context.Context, userID string) (*model.StreakState, error) {
	return (&memoryTx{repo: r}).GetStreakState(ctx, userID)
}

func (r *MemoryProgressRepository) PutStreakState(ctx context.Context, state *model.StreakState) error {
	return r.Atomically(ctx, state.UserID, func(s ProgressStore) error {
		return s.PutStreakState(ctx, state)
	})
}

func (r *MemoryProgressRepository) GetProficiencyProfile(ctx context.Context, userID string) (*model.ProficiencyProfile, error) {
	return (&memoryTx{repo: r}).GetProficiencyProfile(ctx, userID)
}

func (r *MemoryProgressRepository) PutProficiencyProfile(ctx context.Context, profile *model.ProficiencyProfile) error {
	return r.Atomically(ctx, profile.UserID, func(s ProgressStore) error {
		return s.PutProficiencyProfile(ctx, profile)
	})
}

func (r *MemoryProgressRepository) AppendEvent(ctx context.Context, event *model.LearningEventLog) error {
	return r.Atomically(ctx, event.UserID, func(s ProgressStore) error {
		return s.AppendEvent(ctx, event)
	})
}

// memoryTx 读取时先查暂存区再查已提交数据；repo 为只读视图时暂存区为 nil
type memoryTx struct {
	repo     *MemoryProgressRepository
	cards    map[cardKey]model.ReviewCard
	streaks  map[string]model.StreakState
	profiles map[string]model.ProficiencyProfile
	events   []model.LearningEventLog
}

func (t *memoryTx) lookupCard(k cardKey) (model.ReviewCard, bool) {
	if c, ok := t.cards[k]; ok {
		return c, true
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	c, ok := t.repo.cards[k]
	return c, ok
}

func (t *memoryTx) lookupStreak(userID string) (model.StreakState, bool) {
	if s, ok := t.streaks[userID]; ok {
		return s, true
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	s, ok := t.repo.streaks[userID]
	return s, ok
}

func (t *memoryTx) lookupProfile(userID string) (model.ProficiencyProfile, bool) {
	if p, ok := t.profiles[userID]; ok {
		return p, true
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	p, ok := t.repo.profiles[userID]
	return p, ok
}

func checkVersion(op string, exists bool, stored, given int) error {
	if !exists && given == 0 {
		return nil
	}
	if exists && stored == given {
		return nil
	}
	return errors.Wrapf(util.ErrConcurrentModification, "%s: version %d, stored %d", op, given, stored)
}

func (t *memoryTx) stamp(base *model.VersionedModel, now time.Time) {
	if base.Version == 0 {
		t.repo.mu.Lock()
		t.repo.nextID++
		base.ID = t.repo.nextID
		t.repo.mu.Unlock()
		base.CreatedAt = now
	}
	base.Version++
	base.UpdatedAt = now
}

func (t *memoryTx) GetReviewCard(ctx context.Context, userID, cardID string) (*model.ReviewCard, error) {
	c, ok := t.lookupCard(cardKey{userID, cardID})
	if !ok {
		return nil, errors.Wrap(util.ErrNotFound, "get review card")
	}
	c = c.Clone()
	return &c, nil
}

func (t *memoryTx) PutReviewCard(ctx context.Context, card *model.ReviewCard) error {
	k := cardKey{card.UserID, card.CardID}
	stored, ok := t.lookupCard(k)
	if err := checkVersion("put review card", ok, stored.Version, card.Version); err != nil {
		return err
	}
	t.stamp(&card.VersionedModel, time.Now())
	t.cards[k] = card.Clone()
	return nil
}

func (t *memoryTx) ListDueReviewCards(ctx context.Context, userID string, before time.Time, limit int) ([]model.ReviewCard, error) {
	merged := make(map[string]model.ReviewCard)
	t.repo.mu.RLock()
	for k, c := range t.repo.cards {
		if k.userID == userID {
			merged[k.cardID] = c
		}
	}
	t.repo.mu.RUnlock()
	for k, c := range t.cards {
		if k.userID == userID {
			merged[k.cardID] = c
		}
	}

	var out []model.ReviewCard
	for _, c := range merged {
		if !c.Archived && !c.DueAt.After(before) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].CardID < out[j].CardID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memoryTx) GetStreakState(ctx context.Context, userID string) (*model.StreakState, error) {
	s, ok := t.lookupStreak(userID)
	if !ok {
		return nil, errors.Wrap(util.ErrNotFound, "get streak state")
	}
	s = s.Clone()
	return &s, nil
}

func (t *memoryTx) PutStreakState(ctx context.Context, state *model.StreakState) error {
	stored, ok := t.lookupStreak(state.UserID)
	if err := checkVersion("put streak state", ok, stored.Version, state.Version); err != nil {
		return err
	}
	t.stamp(&state.VersionedModel, time.Now())
	t.streaks[state.UserID] = state.Clone()
	return nil
}

func (t *memoryTx) GetProficiencyProfile(ctx context.Context, userID string) (*model.ProficiencyProfile, error) {
	p, ok := t.lookupProfile(userID)
	if !ok {
		return nil, errors.Wrap(util.ErrNotFound, "get proficiency profile")
	}
	p = p.Clone()
	return &p, nil
}

func (t *memoryTx) PutProficiencyProfile(ctx context.Context, profile *model.ProficiencyProfile) error {
	stored, ok := t.lookupProfile(profile.UserID)
	if err := checkVersion("put proficiency profile", ok, stored.Version, profile.Version); err != nil {
		return err
	}
	t.stamp(&profile.VersionedModel, time.Now())
	t.profiles[profile.UserID] = profile.Clone()
	return nil
}

func (t *memoryTx) AppendEvent(ctx context.Context, event *model.LearningEventLog) error {
	if event.ID == "" {
		event.ID = model.GenerateUUID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	t.events = append(t.events, *event)
	return nil
}
