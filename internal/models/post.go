package models

import (
	"time"

	"gorm.io/gorm"
)

// MediaType classifies an uploaded media object.
type MediaType string

const (
	MediaTypeNone  MediaType = "none"
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MaxCaptionLength bounds Post.Caption.
const MaxCaptionLength = 2200

// Post represents a post in the Circle application.
type Post struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	User           User      `gorm:"foreignKey:UserID" json:"user"`
	Caption        string    `gorm:"size:2200" json:"caption"`
	MediaURL       string    `json:"media_url"`
	MediaObjectKey string    `json:"-"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
	ThumbnailKey   string    `json:"-"`
	MediaType      MediaType `gorm:"type:varchar(10);default:'none'" json:"media_type"`
	Location       string    `json:"location"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->;-:migration" json:"comments_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked     bool           `gorm:"->;-:migration" json:"liked"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Like records that a user liked a post.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
