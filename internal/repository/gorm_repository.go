package repository

import (
	"context"
	"lingua_progress/internal/model"
	"lingua_progress/internal/util"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormProgressRepository struct {
	DB *gorm.DB
	*gormStore
}

func NewGormProgressRepository(db *gorm.DB) *GormProgressRepository {
	return &GormProgressRepository{DB: db, gormStore: &gormStore{db: db}}
}

// Atomically 一次调用对应一个数据库事务
func (r *GormProgressRepository) Atomically(ctx context.Context, userID string, fn func(store ProgressStore) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (r *GormProgressRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return util.NewRepositoryError("ping", err)
	}
	return util.NewRepositoryError("ping", sqlDB.PingContext(ctx))
}

type gormStore struct {
	db *gorm.DB
}

func (s *gormStore) GetReviewCard(ctx context.Context, userID, cardID string) (*model.ReviewCard, error) {
	var card model.ReviewCard
	err := s.db.WithContext(ctx).Where("user_id = ? AND card_id = ?", userID, cardID).First(&card).Error
	if err != nil {
		return nil, readError("get review card", err)
	}
	return &card, nil
}

func (s *gormStore) PutReviewCard(ctx context.Context, card *model.ReviewCard) error {
	row := card.Clone()
	err := s.save(ctx, "put review card", &row, &row.VersionedModel, card.Version,
		"user_id = ? AND card_id = ?", card.UserID, card.CardID)
	if err != nil {
		return err
	}
	card.VersionedModel = row.VersionedModel
	return nil
}

func (s *gormStore) ListDueReviewCards(ctx context.Context, userID string, before time.Time, limit int) ([]model.ReviewCard, error) {
	var cards []model.ReviewCard
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND archived = ? AND due_at <= ?", userID, false, before).
		Order("due_at ASC").Order("card_id ASC").
		Limit(limit).
		Find(&cards).Error
	if err != nil {
		return nil, util.NewRepositoryError("list due review cards", err)
	}
	return cards, nil
}

func (s *gormStore) GetStreakState(ctx context.Context, userID string) (*model.StreakState, error) {
	var state model.StreakState
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&state).Error; err != nil {
		return nil, readError("get streak state", err)
	}
	return &state, nil
}

func (s *gormStore) PutStreakState(ctx context.Context, state *model.StreakState) error {
	row := state.Clone()
	if err := s.save(ctx, "put streak state", &row, &row.VersionedModel, state.Version, "user_id = ?", state.UserID); err != nil {
		return err
	}
	state.VersionedModel = row.VersionedModel
	return nil
}

func (s *gormStore) GetProficiencyProfile(ctx context.Context, userID string) (*model.ProficiencyProfile, error) {
	db := s.db.WithContext(ctx)

	var profile model.ProficiencyProfile
	if err := db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, readError("get proficiency profile", err)
	}

	var scores []model.SkillScore
	if err := db.Where("user_id = ?", userID).Find(&scores).Error; err != nil {
		return nil, util.NewRepositoryError("get skill scores", err)
	}
	profile.Skills = make(map[model.Skill]model.SkillScore, len(scores))
	for _, sc := range scores {
		profile.Skills[sc.Skill] = sc
	}
	return &profile, nil
}

// PutProficiencyProfile 档案行走版本检查，技能分数按 (user_id, skill) upsert
func (s *gormStore) PutProficiencyProfile(ctx context.Context, profile *model.ProficiencyProfile) error {
	row := profile.Clone()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &gormStore{db: tx}
		if err := inner.save(ctx, "put proficiency profile", &row, &row.VersionedModel, profile.Version, "user_id = ?", profile.UserID); err != nil {
			return err
		}
		for _, sk := range model.AllSkills {
			sc, ok := row.Skills[sk]
			if !ok {
				continue
			}
			sc.ID = 0
			sc.UserID = row.UserID
			sc.Skill = sk
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "skill"}},
				DoUpdates: clause.AssignmentColumns([]string{"score", "exercises_completed", "last_updated_at", "updated_at"}),
			}).Create(&sc).Error
			if err != nil {
				return util.NewRepositoryError("put skill score", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	profile.VersionedModel = row.VersionedModel
	return nil
}

func (s *gormStore) AppendEvent(ctx context.Context, event *model.LearningEventLog) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return util.NewRepositoryError("append event", err)
	}
	return nil
}

// save 版本为 0 时插入，否则带版本条件更新；row 与 base 指向同一条待写记录
func (s *gormStore) save(ctx context.Context, op string, row interface{}, base *model.VersionedModel, prev int, query string, args ...interface{}) error {
	db := s.db.WithContext(ctx)

	if prev == 0 {
		base.ID = 0
		base.Version = 1
		if err := db.Create(row).Error; err != nil {
			if isDuplicateKey(err) {
				return errors.Wrapf(util.ErrConcurrentModification, "%s: row already exists", op)
			}
			return util.NewRepositoryError(op, err)
		}
		return nil
	}

	base.Version = prev + 1
	res := db.Model(row).
		Where(query, args...).
		Where("version = ?", prev).
		Select("*").
		Omit("id", "created_at").
		Updates(row)
	if res.Error != nil {
		return util.NewRepositoryError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(util.ErrConcurrentModification, "%s: version %d is stale", op, prev)
	}
	return nil
}

func readError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(util.ErrNotFound, op)
	}
	return util.NewRepositoryError(op, err)
}

// isDuplicateKey 需要 gorm.Config.TranslateError，未翻译的驱动错误按文本兜底
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
