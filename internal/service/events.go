// Package service holds the business rules that sit between HTTP handlers and
// repositories.
package service

import (
	"context"
	"time"

	"circle/internal/models"
)

// Realtime event types delivered over /api/ws.
const (
	EventNotificationCreated    = "notification_created"
	EventFriendRequestReceived  = "friend_request_received"
	EventFriendRequestSent      = "friend_request_sent"
	EventFriendRequestAccepted  = "friend_request_accepted"
	EventFriendAdded            = "friend_added"
	EventFriendRequestDeclined  = "friend_request_declined"
	EventFriendRequestCancelled = "friend_request_cancelled"
	EventFriendRemoved          = "friend_removed"
	EventFriendPresenceChanged  = "friend_presence_changed"
	EventFriendsOnlineSnapshot  = "friends_online_snapshot"
)

// EventPublisher pushes a realtime event to one user. Delivery is best effort.
type EventPublisher interface {
	PublishEvent(ctx context.Context, userID uint, eventType string, payload interface{})
}

// TaskRunner runs detached work, usually an *async.Pool.
type TaskRunner interface {
	Go(ctx context.Context, timeout time.Duration, task func(ctx context.Context)) error
}

type noopPublisher struct{}

func (noopPublisher) PublishEvent(context.Context, uint, string, interface{}) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func userSummaryPtr(u *models.User) *models.UserSummary {
	if u == nil || u.ID == 0 {
		return nil
	}
	s := u.Summary()
	return &s
}
