package models

import "time"

// NotificationType names the event a notification reports.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationRequest NotificationType = "request"
	NotificationMention NotificationType = "mention"
)

// NotificationPriority orders notifications for display.
type NotificationPriority string

const (
	PriorityHigh   NotificationPriority = "high"
	PriorityMedium NotificationPriority = "medium"
	PriorityLow    NotificationPriority = "low"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow, NotificationRequest, NotificationMention:
		return true
	}
	return false
}

// PriorityFor derives the priority of a notification from its type alone.
func PriorityFor(t NotificationType) NotificationPriority {
	switch t {
	case NotificationRequest, NotificationMention:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// Notification is a user-visible record of something another user did.
type Notification struct {
	ID          uint                 `gorm:"primaryKey" json:"id"`
	RecipientID uint                 `gorm:"not null;index:idx_notifications_recipient_read" json:"recipient_id"`
	SenderID    uint                 `gorm:"not null" json:"sender_id"`
	Sender      User                 `gorm:"foreignKey:SenderID" json:"sender"`
	Type        NotificationType     `gorm:"type:varchar(20);not null" json:"type"`
	Priority    NotificationPriority `gorm:"type:varchar(10);not null;default:'low'" json:"priority"`
	PostID      *uint                `json:"post_id,omitempty"`
	Post        *Post                `gorm:"foreignKey:PostID" json:"post,omitempty"`
	CommentID   *uint                `json:"comment_id,omitempty"`
	Comment     *Comment             `gorm:"foreignKey:CommentID" json:"comment,omitempty"`
	IsRead      bool                 `gorm:"not null;default:false;index:idx_notifications_recipient_read" json:"is_read"`
	Text        string               `json:"text,omitempty"`
	CreatedAt   time.Time            `gorm:"index" json:"created_at"`
}
