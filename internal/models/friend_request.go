package models

import "time"

// FriendRequestStatus represents where a friend request is in its lifecycle.
type FriendRequestStatus string

const (
	// FriendRequestPending is waiting on the receiver.
	FriendRequestPending FriendRequestStatus = "pending"
	// FriendRequestAccepted was accepted; the record is retained after the edge is created.
	FriendRequestAccepted FriendRequestStatus = "accepted"
	// FriendRequestRejected is accepted on read for older rows; decline deletes instead.
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is a directed ledger entry from Sender to Receiver.
type FriendRequest struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	SenderID   uint                `gorm:"not null;uniqueIndex:idx_friend_request_pair" json:"sender_id"`
	ReceiverID uint                `gorm:"not null;uniqueIndex:idx_friend_request_pair;index" json:"receiver_id"`
	Status     FriendRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`

	Sender   User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// TableName specifies the table name for GORM
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// IsPending reports whether the request still awaits a decision.
func (r FriendRequest) IsPending() bool {
	return r.Status == FriendRequestPending
}
