package service

import (
	"context"
	"encoding/json"
	"lingua_progress/internal/engine"
	"lingua_progress/internal/model"
	"lingua_progress/internal/repository"
	"lingua_progress/internal/util"
	"lingua_progress/pkg/logger"
	"lingua_progress/pkg/monitoring"
	"lingua_progress/pkg/tracing"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	eventTierOverride = "TIER_OVERRIDE"
	eventFreezeUsed   = "FREEZE_USED"
	maxUserIDLength   = 64
)

// ProgressService 学习进度编排器：校验事件，在同一事务内加载状态、调用三个引擎并写回
type ProgressService struct {
	Repo  repository.ProgressRepository
	Cache *repository.ProgressCache
	Clock engine.Clock

	engines atomic.Pointer[engines]
}

func NewProgressService(repo repository.ProgressRepository, cache *repository.ProgressCache, clock engine.Clock, rules Rules) *ProgressService {
	if clock == nil {
		clock = engine.RealClock{}
	}
	s := &ProgressService{Repo: repo, Cache: cache, Clock: clock}
	s.engines.Store(newEngines(rules))
	return s
}

func (s *ProgressService) Rules() Rules {
	return s.engines.Load().rules
}

// UpdateRules 热更新规则，已在处理中的请求继续使用旧规则
func (s *ProgressService) UpdateRules(rules Rules) {
	s.engines.Store(newEngines(rules))
	logger.Log.Info("Progress rules updated",
		zap.Float64("alpha", rules.Proficiency.Alpha),
		zap.Int("tiers", len(rules.Proficiency.Tiers)),
		zap.Float64("jitterRatio", rules.Scheduler.JitterRatio),
	)
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.Wrap(util.ErrInvalidInput, "userId is required")
	}
	if len(userID) > maxUserIDLength {
		return errors.Wrapf(util.ErrInvalidInput, "userId longer than %d characters", maxUserIDLength)
	}
	return nil
}

// ApplyLearningEvent 处理一次学习事件。所有状态变更与事件流水在同一次提交中写入，
// 任一步失败都不会留下部分更新。
func (s *ProgressService) ApplyLearningEvent(ctx context.Context, userID string, event LearningEvent) (result *ProgressResult, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "ProgressService.ApplyLearningEvent")
	defer func() {
		tracing.EndSpan(span, err, attribute.String("event.type", string(event.Type)))
		outcome := "ok"
		if err != nil {
			outcome = util.ErrorReason(err)
		}
		monitoring.ProgressEvents.WithLabelValues(string(event.Type), outcome).Inc()
	}()

	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	eng := s.engines.Load()
	now := s.Clock.Now()
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() || occurredAt.After(now) {
		occurredAt = now
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(err, "encode event payload")
	}

	var transition engine.StreakTransition
	err = s.Repo.Atomically(ctx, userID, func(store repository.ProgressStore) error {
		res := &ProgressResult{
			NextReviewDates: []NextReview{},
			Notifications:   []engine.Notification{},
		}

		profile, err := loadProfile(ctx, store, userID)
		if err != nil {
			return err
		}
		profileDirty := false

		if event.Type == EventExerciseAnswered {
			if event.CardID != "" {
				next, err := s.scheduleCard(ctx, store, eng, userID, event, now)
				if err != nil {
					return err
				}
				res.NextReviewDates = append(res.NextReviewDates, next)
			}

			updated, change, err := eng.proficiency.RecordExercise(*profile, engine.ExerciseResult{
				Skill:     event.Skill,
				IsCorrect: event.IsCorrect,
				Score:     event.Score,
				Timestamp: occurredAt,
			})
			if err != nil {
				return err
			}
			*profile = updated
			profileDirty = true
			res.LevelChange = change
			res.XPEarned += eng.rules.XP.exerciseXP(event.IsCorrect, event.Score)
		}
		if event.Type == EventLessonCompleted {
			res.XPEarned += eng.rules.XP.LessonCompleted
		}

		state, stateErr := store.GetStreakState(ctx, userID)
		if stateErr != nil && !errors.Is(stateErr, util.ErrNotFound) {
			return stateErr
		}

		if event.feedsStreak() {
			if state == nil {
				tz := event.Timezone
				if tz == "" {
					tz = eng.rules.DefaultTimezone
				}
				fresh := engine.NewStreakState(userID, tz)
				state = &fresh
			}
			prevStreak := state.CurrentStreak

			next := state.Clone()
			if event.Timezone != "" {
				next.Timezone = event.Timezone
			}
			activity, err := s.activityDate(event.LocalDate, next.Timezone)
			if err != nil {
				return err
			}
			transition = eng.streak.Classify(next, activity)
			next, notes := eng.streak.RecordActivity(next, activity)

			for _, n := range notes {
				if n.Kind == engine.NotifyMilestone {
					res.XPEarned += eng.rules.XP.StreakMilestoneBonus
				}
			}
			res.Notifications = append(res.Notifications, notes...)
			res.StreakDelta = next.CurrentStreak - prevStreak

			if transition != engine.TransitionActive || next.Timezone != state.Timezone {
				if err := store.PutStreakState(ctx, &next); err != nil {
					return err
				}
			}
			state = &next
		}

		if res.XPEarned > 0 {
			profile.TotalXP += res.XPEarned
			profileDirty = true
		}
		if profileDirty {
			if err := store.PutProficiencyProfile(ctx, profile); err != nil {
				return err
			}
		}

		if err := store.AppendEvent(ctx, &model.LearningEventLog{
			UserID:     userID,
			EventType:  string(event.Type),
			Payload:    string(payload),
			XPEarned:   res.XPEarned,
			OccurredAt: occurredAt.UTC(),
		}); err != nil {
			return err
		}

		res.TotalXP = profile.TotalXP
		res.AssessedTier = profile.AssessedTier
		if state != nil {
			res.StreakStatus = eng.streak.GetStatus(*state, now)
			res.CurrentStreak = eng.streak.EffectiveStreak(*state, now)
			res.LongestStreak = state.LongestStreak
			res.FreezesAvailable = state.FreezesAvailable
		} else {
			res.StreakStatus = engine.StreakBroken
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Cache.Invalidate(ctx, userID)
	if transition != "" {
		monitoring.StreakTransitions.WithLabelValues(string(transition)).Inc()
	}
	if result.LevelChange != nil {
		monitoring.LevelChanges.WithLabelValues(string(result.LevelChange.PreviousTier), string(result.LevelChange.NewTier)).Inc()
		logger.Log.Info("Learner tier advanced",
			zap.String("userID", userID),
			zap.String("from", string(result.LevelChange.PreviousTier)),
			zap.String("to", string(result.LevelChange.NewTier)),
		)
	}
	logger.Log.Debug("Learning event applied",
		zap.String("userID", userID),
		zap.String("type", string(event.Type)),
		zap.Int("xp", result.XPEarned),
	)
	return result, nil
}

func (s *ProgressService) scheduleCard(ctx context.Context, store repository.ProgressStore, eng *engines, userID string, event LearningEvent, now time.Time) (NextReview, error) {
	card, err := store.GetReviewCard(ctx, userID, event.CardID)
	if errors.Is(err, util.ErrNotFound) {
		fresh := engine.NewReviewCard(userID, event.CardID, now)
		card, err = &fresh, nil
	}
	if err != nil {
		return NextReview{}, err
	}

	quality := engine.QualityFromResult(event.Score, event.IsCorrect)
	if event.ReviewQuality != nil {
		quality = *event.ReviewQuality
	}
	next, err := eng.scheduler.Schedule(*card, quality, now)
	if err != nil {
		return NextReview{}, err
	}
	// 归档卡片再次作答视为重新启用
	next.Archived = false
	if err := store.PutReviewCard(ctx, &next); err != nil {
		return NextReview{}, err
	}
	days := engine.ScheduledDays(next)
	monitoring.ReviewsScheduled.Observe(float64(days))
	return NextReview{CardID: next.CardID, DueAt: next.DueAt, IntervalDays: days}, nil
}

// activityDate 客户端未给出日期时取时区下的今天；允许比服务端今天晚一天以容忍时钟偏差
func (s *ProgressService) activityDate(local model.Date, tz string) (model.Date, error) {
	today := engine.Today(s.Clock, tz)
	if local.IsZero() {
		return today, nil
	}
	if local.After(today.AddDays(1)) {
		return model.Date{}, errors.Wrapf(util.ErrInvalidInput, "local date %s is in the future", local)
	}
	return local, nil
}

func loadProfile(ctx context.Context, store repository.ProgressStore, userID string) (*model.ProficiencyProfile, error) {
	profile, err := store.GetProficiencyProfile(ctx, userID)
	if errors.Is(err, util.ErrNotFound) {
		fresh := engine.NewProficiencyProfile(userID)
		return &fresh, nil
	}
	if err != nil {
		return nil, err
	}
	if profile.Skills == nil {
		profile.Skills = map[model.Skill]model.SkillScore{}
	}
	return profile, nil
}

// CheckIn 每日签到，等价于一次 DAILY_SESSION 事件
func (s *ProgressService) CheckIn(ctx context.Context, userID string, localDate model.Date, timezone string) (*ProgressResult, error) {
	return s.ApplyLearningEvent(ctx, userID, LearningEvent{
		Type:      EventDailySession,
		LocalDate: localDate,
		Timezone:  timezone,
	})
}

// UseFreeze 为错过的日期使用一张冻结卡，只能覆盖今天之前、最后活跃日之后的日期
func (s *ProgressService) UseFreeze(ctx context.Context, userID string, missedDate model.Date) (view *StreakView, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "ProgressService.UseFreeze")
	defer func() { tracing.EndSpan(span, err) }()

	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if missedDate.IsZero() {
		return nil, errors.Wrap(util.ErrInvalidInput, "missedDate is required")
	}

	eng := s.engines.Load()
	now := s.Clock.Now()
	err = s.Repo.Atomically(ctx, userID, func(store repository.ProgressStore) error {
		state, err := store.GetStreakState(ctx, userID)
		if errors.Is(err, util.ErrNotFound) {
			return errors.Wrap(util.ErrNoFreezeAvailable, "no streak yet")
		}
		if err != nil {
			return err
		}
		if !missedDate.Before(engine.Today(s.Clock, state.Timezone)) {
			return errors.Wrapf(util.ErrInvalidInput, "date %s has not been missed yet", missedDate)
		}

		alreadyFrozen := state.FreezeUsedDates.Contains(missedDate)
		next, err := eng.streak.UseFreeze(*state, missedDate)
		if err != nil {
			return err
		}
		if !alreadyFrozen {
			if err := store.PutStreakState(ctx, &next); err != nil {
				return err
			}
			payload, _ := json.Marshal(map[string]string{"missedDate": missedDate.String()})
			if err := store.AppendEvent(ctx, &model.LearningEventLog{
				UserID:     userID,
				EventType:  eventFreezeUsed,
				Payload:    string(payload),
				OccurredAt: now.UTC(),
			}); err != nil {
				return err
			}
		}
		view = s.streakView(eng, &next, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Cache.Invalidate(ctx, userID)
	monitoring.StreakTransitions.WithLabelValues(eventFreezeUsed).Inc()
	return view, nil
}

// StreakStatus 只读查询，用户没有任何记录时返回 ErrNotFound
func (s *ProgressService) StreakStatus(ctx context.Context, userID string) (*StreakView, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	eng := s.engines.Load()

	state, ok := s.Cache.GetStreakState(ctx, userID)
	if !ok {
		gen := s.Cache.Generation(ctx, userID)
		var err error
		state, err = s.Repo.GetStreakState(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.Cache.SetStreakState(ctx, state, gen)
	}
	return s.streakView(eng, state, s.Clock.Now()), nil
}

func (s *ProgressService) streakView(eng *engines, state *model.StreakState, now time.Time) *StreakView {
	used := state.FreezeUsedDates
	if used == nil {
		used = model.DateSet{}
	}
	return &StreakView{
		UserID:           state.UserID,
		Status:           eng.streak.GetStatus(*state, now),
		CurrentStreak:    eng.streak.EffectiveStreak(*state, now),
		LongestStreak:    state.LongestStreak,
		LastActiveDate:   state.LastActiveDate,
		Timezone:         state.Timezone,
		FreezesAvailable: state.FreezesAvailable,
		FreezeUsedDates:  used,
	}
}

// Proficiency 只读查询，附带距下一等级的差距
func (s *ProgressService) Proficiency(ctx context.Context, userID string) (*ProficiencyView, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	profile, ok := s.Cache.GetProficiencyProfile(ctx, userID)
	if !ok {
		gen := s.Cache.Generation(ctx, userID)
		var err error
		profile, err = s.Repo.GetProficiencyProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.Cache.SetProficiencyProfile(ctx, profile, gen)
	}
	return s.proficiencyView(s.engines.Load(), profile), nil
}

func (s *ProgressService) proficiencyView(eng *engines, profile *model.ProficiencyProfile) *ProficiencyView {
	skills := make([]model.SkillScore, 0, len(profile.Skills))
	for _, sc := range profile.Skills {
		skills = append(skills, sc)
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Skill < skills[j].Skill })

	return &ProficiencyView{
		UserID:       profile.UserID,
		AssessedTier: profile.AssessedTier,
		TotalXP:      profile.TotalXP,
		Skills:       skills,
		NextTier:     eng.proficiency.NextTier(*profile),
	}
}

// DueReviews 当前已到期的卡片，按到期时间升序
func (s *ProgressService) DueReviews(ctx context.Context, userID string, limit int) ([]model.ReviewCard, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.engines.Load().rules.DueReviewLimit
	}
	if limit > util.MaxDueReviewLimit {
		limit = util.MaxDueReviewLimit
	}

	cards, err := s.Repo.ListDueReviewCards(ctx, userID, s.Clock.Now(), limit)
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []model.ReviewCard{}
	}
	engine.SortByDue(cards)
	return cards, nil
}

// ArchiveCard 软归档，卡片不再出现在到期列表中
func (s *ProgressService) ArchiveCard(ctx context.Context, userID, cardID string) (*model.ReviewCard, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cardID) == "" {
		return nil, errors.Wrap(util.ErrInvalidInput, "cardId is required")
	}

	var archived *model.ReviewCard
	err := s.Repo.Atomically(ctx, userID, func(store repository.ProgressStore) error {
		card, err := store.GetReviewCard(ctx, userID, cardID)
		if err != nil {
			return err
		}
		if !card.Archived {
			card.Archived = true
			if err := store.PutReviewCard(ctx, card); err != nil {
				return err
			}
		}
		archived = card
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}

// OverrideTier 管理员调整等级，可升可降
func (s *ProgressService) OverrideTier(ctx context.Context, userID string, tier model.Tier) (*ProficiencyView, *engine.LevelChangeEvent, error) {
	if err := validateUserID(userID); err != nil {
		return nil, nil, err
	}
	if !tier.Valid() {
		return nil, nil, errors.Wrapf(util.ErrInvalidInput, "unknown tier %q", tier)
	}

	eng := s.engines.Load()
	var (
		view   *ProficiencyView
		change *engine.LevelChangeEvent
	)
	err := s.Repo.Atomically(ctx, userID, func(store repository.ProgressStore) error {
		profile, err := loadProfile(ctx, store, userID)
		if err != nil {
			return err
		}
		next, ev, err := eng.proficiency.OverrideTier(*profile, tier)
		if err != nil {
			return err
		}
		if ev != nil {
			if err := store.PutProficiencyProfile(ctx, &next); err != nil {
				return err
			}
			payload, _ := json.Marshal(ev)
			if err := store.AppendEvent(ctx, &model.LearningEventLog{
				UserID:     userID,
				EventType:  eventTierOverride,
				Payload:    string(payload),
				OccurredAt: s.Clock.Now().UTC(),
			}); err != nil {
				return err
			}
		}
		view = s.proficiencyView(eng, &next)
		change = ev
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.Cache.Invalidate(ctx, userID)
	if change != nil {
		monitoring.LevelChanges.WithLabelValues(string(change.PreviousTier), string(change.NewTier)).Inc()
		logger.Log.Info("Learner tier overridden",
			zap.String("userID", userID),
			zap.String("from", string(change.PreviousTier)),
			zap.String("to", string(change.NewTier)),
		)
	}
	return view, change, nil
}
