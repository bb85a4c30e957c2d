package models

import "time"

// User is an authenticated identity. Local accounts carry a bcrypt hash in
// Password; Google accounts carry a GoogleID and no password. The story
// layer only ever reads ID and Name.
type User struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"uniqueIndex;not null"`
	Password  string    `json:"-"` // bcrypt hash, empty for OAuth accounts
	Provider  string    `gorm:"default:'local'"`
	GoogleID  string    `gorm:"index"`
	CreatedAt time.Time
}
