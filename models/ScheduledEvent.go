package models

import "time"

// ScheduledEvent is an organizer-created group meetup with an invitee list;
// each participant responds independently.
type ScheduledEvent struct {
	ID uint `json:"id" gorm:"primaryKey"`

	OrganizerID uint `json:"organizerID" gorm:"not null;index"`
	Organizer   User `json:"organizer" gorm:"foreignKey:OrganizerID"`

	ActivityID *uint     `json:"activityID"`
	Activity   *Activity `json:"activity,omitempty" gorm:"foreignKey:ActivityID"`

	Title           string `json:"title" gorm:"size:256"`
	Location        string `json:"location" gorm:"size:256"`
	EventDate       string `json:"eventDate" gorm:"size:10"` // YYYY-MM-DD
	EventTime       string `json:"eventTime" gorm:"size:5"`  // HH:MM
	Description     string `json:"description" gorm:"size:1024"`
	MaxParticipants int    `json:"maxParticipants"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type EventParticipant struct {
	ID uint `json:"id" gorm:"primaryKey"`

	EventID uint           `json:"eventID" gorm:"not null;uniqueIndex:idx_event_user"`
	Event   ScheduledEvent `json:"-" gorm:"foreignKey:EventID"`

	UserID uint `json:"userID" gorm:"not null;uniqueIndex:idx_event_user"`
	User   User `json:"user" gorm:"foreignKey:UserID"`

	// pending, accepted, declined
	Status      string     `json:"status" gorm:"size:16"`
	InvitedAt   time.Time  `json:"invitedAt"`
	RespondedAt *time.Time `json:"respondedAt"`
}
