package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrSelfFriendship is returned when an edge would connect a user to themself.
var ErrSelfFriendship = errors.New("friendship requires two distinct users")

// Friendship is the single undirected edge between two friends.
// The pair is stored in canonical order so {a,b} and {b,a} map to the same row.
type Friendship struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserLowID  uint      `gorm:"not null;uniqueIndex:idx_friendship_pair;index" json:"user_low_id"`
	UserHighID uint      `gorm:"not null;uniqueIndex:idx_friendship_pair;index" json:"user_high_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}

// CanonicalPair orders two user IDs so the lower one comes first.
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// NewFriendship builds the edge between a and b in canonical order.
func NewFriendship(a, b uint) *Friendship {
	low, high := CanonicalPair(a, b)
	return &Friendship{UserLowID: low, UserHighID: high}
}

// BeforeCreate keeps the pair canonical regardless of how the row was built.
func (f *Friendship) BeforeCreate(_ *gorm.DB) error {
	if f.UserLowID == f.UserHighID {
		return ErrSelfFriendship
	}
	f.UserLowID, f.UserHighID = CanonicalPair(f.UserLowID, f.UserHighID)
	return nil
}

// Other returns the member of the pair that is not userID.
func (f Friendship) Other(userID uint) uint {
	if f.UserLowID == userID {
		return f.UserHighID
	}
	return f.UserLowID
}

// Involves reports whether userID is one side of the edge.
func (f Friendship) Involves(userID uint) bool {
	return f.UserLowID == userID || f.UserHighID == userID
}
