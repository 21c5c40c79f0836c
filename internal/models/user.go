// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the Circle application.
type User struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Username            string         `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email               string         `gorm:"uniqueIndex;not null" json:"email"`
	Password            string         `gorm:"not null" json:"-"`
	FullName            string         `gorm:"size:100" json:"full_name"`
	Bio                 string         `gorm:"size:500" json:"bio"`
	ProfilePicture      string         `json:"profile_picture"`
	CoverPhoto          string         `json:"cover_photo"`
	Location            string         `json:"location"`
	Website             string         `json:"website"`
	ResetPasswordToken  string         `gorm:"index" json:"-"`
	ResetPasswordExpire *time.Time     `json:"-"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`

	// Friends is filled on demand from the friendships table; it is never persisted.
	Friends []User `gorm:"-" json:"friends,omitempty"`
}

// UserSummary is the public projection used when a user is embedded in another payload.
type UserSummary struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	ProfilePicture string `json:"profile_picture"`
}

// Summary returns the public projection of u.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		FullName:       u.FullName,
		ProfilePicture: u.ProfilePicture,
	}
}
