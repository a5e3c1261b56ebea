package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"size:128"`
	Email    string `json:"email" gorm:"uniqueIndex;size:256"`
	Password string `json:"-"`

	AvatarURL string `json:"avatarURL" gorm:"size:512"`

	// Last known position, only meaningful when sharing is enabled
	Latitude               *float64   `json:"latitude"`
	Longitude              *float64   `json:"longitude"`
	LocationSharingEnabled bool       `json:"locationSharingEnabled" gorm:"default:true"`
	LocationUpdatedAt      *time.Time `json:"locationUpdatedAt"`

	PushTokens          datatypes.JSON `json:"pushTokens"`
	AllowsNotifications *bool          `json:"allowsNotifications"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MarshalJSON expands the PushTokens JSON column so clients always see an array
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		PushTokens []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		PushTokens: []string{},
		Alias:      (*Alias)(u),
	}

	if u.PushTokens != nil {
		var tokens []string
		if err := json.Unmarshal(u.PushTokens, &tokens); err == nil {
			aux.PushTokens = tokens
		}
	}

	return json.Marshal(aux)
}
