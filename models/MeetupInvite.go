package models

import "time"

const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
	InviteDeclined = "declined"
)

// MeetupInvite belongs to exactly one chat. Lifecycle: pending -> accepted or
// declined, both terminal. Accepted invites in the past are filtered from the
// upcoming views, never deleted.
type MeetupInvite struct {
	ID uint `json:"id" gorm:"primaryKey"`

	ChatID uint `json:"chatID" gorm:"not null;index"`
	Chat   Chat `json:"-" gorm:"foreignKey:ChatID"`

	SenderID uint `json:"senderID" gorm:"not null"`
	Sender   User `json:"sender" gorm:"foreignKey:SenderID"`

	RecipientID uint `json:"recipientID" gorm:"not null;index"`
	Recipient   User `json:"recipient" gorm:"foreignKey:RecipientID"`

	Location  string `json:"location" gorm:"size:256"`
	EventDate string `json:"eventDate" gorm:"size:10"` // YYYY-MM-DD
	EventTime string `json:"eventTime" gorm:"size:5"`  // HH:MM

	// pending, accepted, declined
	Status      string     `json:"status" gorm:"index;size:16"`
	RespondedAt *time.Time `json:"respondedAt"`

	CreatedAt time.Time `json:"createdAt"`
}

// EventAt combines EventDate and EventTime into a wall-clock instant
func (m *MeetupInvite) EventAt() (time.Time, error) {
	return time.ParseInLocation("2006-01-02T15:04", m.EventDate+"T"+m.EventTime, time.Local)
}
