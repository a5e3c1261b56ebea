package models

import "time"

// Chat is an unordered pair of users. The pair is stored normalized
// (ParticipantLow < ParticipantHigh) under a unique index so two devices
// racing on first contact cannot create duplicate rows.
type Chat struct {
	ID uint `json:"id" gorm:"primaryKey"`

	ParticipantLow  uint `json:"participant1" gorm:"not null;uniqueIndex:idx_chat_pair"`
	ParticipantHigh uint `json:"participant2" gorm:"not null;uniqueIndex:idx_chat_pair"`

	LastMessageAt *time.Time `json:"lastMessageAt" gorm:"index"`

	CreatedAt time.Time `json:"createdAt"`
}

// NormalizePair orders an unordered user pair for storage and lookup
func NormalizePair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// OtherParticipant returns the participant that is not userID
func (c *Chat) OtherParticipant(userID uint) uint {
	if c.ParticipantLow == userID {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}

// HasParticipant reports whether userID is part of the pair
func (c *Chat) HasParticipant(userID uint) bool {
	return c.ParticipantLow == userID || c.ParticipantHigh == userID
}
