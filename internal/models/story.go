package models

import "time"

// StoryRetention is how long a story stays visible after it is posted.
const StoryRetention = 24 * time.Hour

// Story is an ephemeral media post visible to the author and their friends.
type Story struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	User           User      `gorm:"foreignKey:UserID" json:"user"`
	MediaURL       string    `gorm:"not null" json:"media_url"`
	MediaObjectKey string    `json:"-"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
	ThumbnailKey   string    `json:"-"`
	MediaType      MediaType `gorm:"type:varchar(10);default:'image'" json:"media_type"`
	TextOffsetX    float64   `json:"text_offset_x"`
	TextOffsetY    float64   `json:"text_offset_y"`
	ViewCount      int       `gorm:"->;-:migration" json:"view_count"`
	ExpiresAt      time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// StoryView records that a viewer opened a story.
type StoryView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StoryID   uint      `gorm:"not null;uniqueIndex:idx_story_view" json:"story_id"`
	ViewerID  uint      `gorm:"not null;uniqueIndex:idx_story_view" json:"viewer_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the story is past its retention window at now.
func (s Story) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
