package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChatMessage stores a single message in a one-to-one chat. Append-only.
type ChatMessage struct {
	ID uint `json:"id" gorm:"primaryKey"`

	ChatID uint `json:"chatID" gorm:"not null;index"`
	Chat   Chat `json:"-" gorm:"foreignKey:ChatID"`

	SenderID uint `json:"senderID" gorm:"not null;index"`
	Sender   User `json:"sender" gorm:"foreignKey:SenderID"`

	Message   string         `json:"message" gorm:"type:text"`
	ImageURLs datatypes.JSON `json:"imageURLs"`

	CreatedAt time.Time `json:"createdAt"`
}

// ChatRead tracks when a user last opened a chat; unread counting starts there
type ChatRead struct {
	ID uint `json:"id" gorm:"primaryKey"`

	ChatID uint `json:"chatID" gorm:"not null;uniqueIndex:idx_chat_read"`
	UserID uint `json:"userID" gorm:"not null;uniqueIndex:idx_chat_read"`

	ReadAt time.Time `json:"readAt"`
}
