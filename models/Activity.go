package models

// Activity is one entry of the static activity catalog. Rows are seeded, never
// user-created.
type Activity struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"uniqueIndex;size:128"`
	Emoji       string `json:"emoji" gorm:"size:16"`
	Description string `json:"description" gorm:"size:512"`
}
