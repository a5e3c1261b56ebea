package models

import "time"

const (
	SkillBeginner     = "Beginner"
	SkillIntermediate = "Intermediate"
	SkillAdvanced     = "Advanced"
)

// UserActivitySkill is a user's self-assigned level for one activity, one row
// per (user, activity). Writes go through an upsert on that pair.
type UserActivitySkill struct {
	ID uint `json:"id" gorm:"primaryKey"`

	UserID uint `json:"userID" gorm:"not null;uniqueIndex:idx_user_activity"`
	User   User `json:"user" gorm:"foreignKey:UserID"`

	ActivityID uint     `json:"activityID" gorm:"not null;uniqueIndex:idx_user_activity"`
	Activity   Activity `json:"activity" gorm:"foreignKey:ActivityID"`

	// Beginner, Intermediate, Advanced
	SkillLevel string `json:"skillLevel" gorm:"size:16"`

	// Flags the user as up for this activity today; drives the people sort
	ReadyToday bool `json:"readyToday"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
