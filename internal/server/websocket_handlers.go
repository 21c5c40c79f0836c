package server

import (
	"context"
	"time"

	"circle/internal/middleware"
	"circle/internal/notifications"
	"circle/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const presenceTimeout = 5 * time.Second

// WebsocketHandler streams the caller's realtime events. Authentication is
// handled by route middleware and userID is read from connection locals.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed", "user_id", uid, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		s.sendFriendsOnlineSnapshot(client)
		s.notifyFriendsPresence(uid, "online")

		go client.WritePump()
		client.ReadPump()

		// ReadPump unregisters the client before it returns.
		if !s.hub.IsOnline(uid) {
			s.notifyFriendsPresence(uid, "offline")
		}
	})
}

func (s *Server) notifyFriendsPresence(userID uint, status string) {
	ctx, cancel := context.WithTimeout(middleware.WithUserID(context.Background(), userID), presenceTimeout)
	defer cancel()

	friendIDs, err := s.friendService.FriendIDs(ctx, userID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to load friends for presence event", "error", err)
		return
	}
	payload := map[string]interface{}{
		"user_id":    userID,
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, id := range friendIDs {
		s.publisher.PublishEvent(ctx, id, service.EventFriendPresenceChanged, payload)
	}
}

func (s *Server) sendFriendsOnlineSnapshot(client *notifications.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	friendIDs, err := s.friendService.FriendIDs(ctx, client.UserID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to load friends for online snapshot", "error", err)
		return
	}
	online := make([]uint, 0, len(friendIDs))
	for _, id := range friendIDs {
		if s.hub.IsOnline(id) {
			online = append(online, id)
		}
	}
	msg, err := notifications.Encode(service.EventFriendsOnlineSnapshot, map[string]interface{}{
		"user_ids": online,
	})
	if err != nil {
		middleware.Logger.Error("failed to encode online snapshot", "error", err)
		return
	}
	client.TrySend([]byte(msg))
}
