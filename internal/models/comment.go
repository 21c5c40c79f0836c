package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxCommentLength bounds Comment.Content.
const MaxCommentLength = 1000

// Comment is a reply on a post.
type Comment struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Content string `gorm:"type:text;not null" json:"content"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	User    User   `gorm:"foreignKey:UserID" json:"user"`
	PostID  uint   `gorm:"not null;index" json:"post_id"`
	// LikesCount is computed at query time
	LikesCount int            `gorm:"->;-:migration" json:"likes_count"`
	Liked      bool           `gorm:"->;-:migration" json:"liked"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// CommentLike records that a user liked a comment.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_like_user_comment" json:"user_id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_like_user_comment;index" json:"comment_id"`
	CreatedAt time.Time `json:"created_at"`
}
