package models

import "time"

// User is an operator account. Accounts are created administratively and
// passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:200;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
