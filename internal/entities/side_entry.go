package entities

import "time"

// SideEntry is one key of the side store. It lives in its own SQLite file
// so it survives replacement of the exercise database.
type SideEntry struct {
	Namespace string    `gorm:"primaryKey;size:100" json:"namespace"`
	Key       string    `gorm:"primaryKey;size:255" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SideEntry) TableName() string {
	return "side_entries"
}
