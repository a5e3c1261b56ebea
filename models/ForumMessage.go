package models

import (
	"time"

	"gorm.io/datatypes"
)

// ForumMessage belongs to exactly one activity and is immutable once created.
// ReplyToID, when set, references a message in the same activity.
type ForumMessage struct {
	ID uint `json:"id" gorm:"primaryKey"`

	ActivityID uint     `json:"activityID" gorm:"not null;index"`
	Activity   Activity `json:"activity" gorm:"foreignKey:ActivityID"`

	UserID uint `json:"userID" gorm:"not null;index"`
	User   User `json:"user" gorm:"foreignKey:UserID"`

	Message   string         `json:"message" gorm:"type:text"`
	ImageURLs datatypes.JSON `json:"imageURLs"`
	ReplyToID *uint          `json:"replyToID" gorm:"index"`
	ReplyTo   *ForumMessage  `json:"replyTo,omitempty" gorm:"foreignKey:ReplyToID"`

	CreatedAt time.Time `json:"createdAt"`
}
