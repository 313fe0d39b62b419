package model

// StreakState 每个用户一条，记录连续学习天数与冻结卡库存
// swagger:model StreakState
type StreakState struct {
	VersionedModel
	UserID           string  `gorm:"size:64;not null;uniqueIndex" json:"userId"`
	CurrentStreak    int     `gorm:"not null" json:"currentStreak"`
	LongestStreak    int     `gorm:"not null" json:"longestStreak"`
	LastActiveDate   Date    `gorm:"type:varchar(10)" json:"lastActiveDate"`
	Timezone         string  `gorm:"size:64;not null" json:"timezone"`
	FreezesAvailable int     `gorm:"not null" json:"freezesAvailable"`
	FreezeUsedDates  DateSet `gorm:"type:text" json:"freezeUsedDates"`
}

func (StreakState) TableName() string {
	return "streak_states"
}

func (s StreakState) Clone() StreakState {
	out := s
	out.FreezeUsedDates = s.FreezeUsedDates.Clone()
	return out
}
