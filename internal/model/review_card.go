package model

import "time"

// ReviewCard 用户的一个待复习单元（如一个词条），只由复习调度器修改，不删除只归档
// swagger:model ReviewCard
type ReviewCard struct {
	VersionedModel
	UserID         string     `gorm:"size:64;not null;uniqueIndex:idx_review_cards_user_card,priority:1;index:idx_review_cards_due,priority:1" json:"userId"`
	CardID         string     `gorm:"size:128;not null;uniqueIndex:idx_review_cards_user_card,priority:2" json:"cardId"`
	EaseFactor     float64    `gorm:"not null" json:"easeFactor"`
	IntervalDays   int        `gorm:"not null" json:"intervalDays"`
	Repetitions    int        `gorm:"not null" json:"repetitions"`
	DueAt          time.Time  `gorm:"not null;precision:3;index:idx_review_cards_due,priority:2" json:"dueAt"`
	LastReviewedAt *time.Time `gorm:"precision:3" json:"lastReviewedAt"`
	Archived       bool       `gorm:"not null" json:"archived"`
}

func (ReviewCard) TableName() string {
	return "review_cards"
}

// Clone 深拷贝，避免共享 LastReviewedAt 指针
func (c ReviewCard) Clone() ReviewCard {
	out := c
	if c.LastReviewedAt != nil {
		t := *c.LastReviewedAt
		out.LastReviewedAt = &t
	}
	return out
}
