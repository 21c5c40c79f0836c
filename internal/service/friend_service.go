package service

import (
	"context"

	"circle/internal/models"
	"circle/internal/observability"
	"circle/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Friendship status values reported by GetFriendshipStatus.
const (
	FriendshipStatusNone            = "none"
	FriendshipStatusFriends         = "friends"
	FriendshipStatusPendingSent     = "pending_sent"
	FriendshipStatusPendingReceived = "pending_received"
)

// FriendshipStatus describes how the caller relates to another user.
type FriendshipStatus struct {
	Status    string `json:"status"`
	RequestID uint   `json:"request_id,omitempty"`
}

// FriendService runs the friend-request ledger and owns the friendship graph.
type FriendService struct {
	requests    repository.FriendRequestRepository
	friendships repository.FriendshipRepository
	userRepo    repository.UserRepository
	sink        NotificationSink
	events      EventPublisher
}

// NewFriendService returns a new FriendService.
func NewFriendService(
	requests repository.FriendRequestRepository,
	friendships repository.FriendshipRepository,
	userRepo repository.UserRepository,
	sink NotificationSink,
	events EventPublisher,
) *FriendService {
	return &FriendService{
		requests:    requests,
		friendships: friendships,
		userRepo:    userRepo,
		sink:        sinkOrNoop(sink),
		events:      publisherOrNoop(events),
	}
}

// SendFriendRequest records a pending request from senderID to receiverID.
func (s *FriendService) SendFriendRequest(ctx context.Context, senderID, receiverID uint) (req *models.FriendRequest, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "FriendService", "SendFriendRequest",
		attribute.Int64("sender.id", int64(senderID)),
		attribute.Int64("receiver.id", int64(receiverID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if senderID == receiverID {
		return nil, models.NewInvalidOperationError("You cannot send a friend request to yourself")
	}

	exists, err := s.userRepo.Exists(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("User", receiverID)
	}

	friends, err := s.friendships.Exists(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, models.NewConflictError("You are already friends")
	}

	forward, err := s.requests.GetBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if forward != nil && forward.IsPending() {
		return nil, models.NewConflictError("Friend request already pending")
	}

	reverse, err := s.requests.GetBetween(ctx, receiverID, senderID)
	if err != nil {
		return nil, err
	}
	if reverse != nil && reverse.IsPending() {
		return nil, models.NewConflictError("This user has already sent you a friend request")
	}

	req = &models.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.FriendRequestPending,
	}
	if forward != nil {
		err = s.requests.ReplaceStale(ctx, forward.ID, req)
	} else {
		err = s.requests.Create(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	observability.FriendRequestTransitions.WithLabelValues("sent").Inc()

	s.sink.Create(ctx, NotificationInput{
		RecipientID: receiverID,
		SenderID:    senderID,
		Type:        models.NotificationRequest,
	})

	created, err := s.requests.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	s.events.PublishEvent(ctx, receiverID, EventFriendRequestReceived, requestPayload(created))
	s.events.PublishEvent(ctx, senderID, EventFriendRequestSent, requestPayload(created))
	return created, nil
}

// AcceptFriendRequest accepts a pending request addressed to actorID and
// creates the friendship edge in the same transaction.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, actorID, requestID uint) (req *models.FriendRequest, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "FriendService", "AcceptFriendRequest",
		attribute.Int64("request.id", int64(requestID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	req, err = s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != actorID {
		return nil, models.NewUnauthorizedError("You can only accept friend requests sent to you")
	}
	if !req.IsPending() {
		return nil, models.NewInvalidOperationError("Friend request is not pending")
	}

	if _, err := s.requests.Accept(ctx, requestID); err != nil {
		return nil, err
	}
	req.Status = models.FriendRequestAccepted
	observability.FriendRequestTransitions.WithLabelValues("accepted").Inc()

	s.sink.Create(ctx, NotificationInput{
		RecipientID: req.SenderID,
		SenderID:    actorID,
		Type:        models.NotificationFollow,
		Text:        "accepted your friend request",
	})

	s.events.PublishEvent(ctx, req.SenderID, EventFriendRequestAccepted, requestPayload(req))
	s.events.PublishEvent(ctx, req.SenderID, EventFriendAdded, friendPayload(req.ReceiverID, &req.Receiver))
	s.events.PublishEvent(ctx, req.ReceiverID, EventFriendAdded, friendPayload(req.SenderID, &req.Sender))
	return req, nil
}

// DeclineFriendRequest deletes a pending request addressed to actorID.
func (s *FriendService) DeclineFriendRequest(ctx context.Context, actorID, requestID uint) (*models.FriendRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != actorID {
		return nil, models.NewUnauthorizedError("You can only decline friend requests sent to you")
	}
	if !req.IsPending() {
		return nil, models.NewInvalidOperationError("Friend request is not pending")
	}

	if err := s.requests.Delete(ctx, requestID); err != nil {
		return nil, err
	}
	observability.FriendRequestTransitions.WithLabelValues("declined").Inc()

	s.events.PublishEvent(ctx, req.SenderID, EventFriendRequestDeclined, requestPayload(req))
	return req, nil
}

// CancelFriendRequest deletes a pending request sent by actorID.
func (s *FriendService) CancelFriendRequest(ctx context.Context, actorID, requestID uint) (*models.FriendRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.SenderID != actorID {
		return nil, models.NewUnauthorizedError("You can only cancel friend requests you sent")
	}
	if !req.IsPending() {
		return nil, models.NewInvalidOperationError("Friend request is not pending")
	}

	if err := s.requests.Delete(ctx, requestID); err != nil {
		return nil, err
	}
	observability.FriendRequestTransitions.WithLabelValues("cancelled").Inc()

	s.events.PublishEvent(ctx, req.ReceiverID, EventFriendRequestCancelled, requestPayload(req))
	return req, nil
}

// RemoveFriend deletes the edge between userID and friendID together with
// every request record between them.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID uint) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "FriendService", "RemoveFriend",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("friend.id", int64(friendID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	for _, id := range []uint{userID, friendID} {
		exists, err := s.userRepo.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return models.NewNotFoundError("User", id)
		}
	}

	friends, err := s.friendships.Exists(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !friends {
		return models.NewInvalidOperationError("Not friends")
	}

	if err := s.requests.RemoveFriendship(ctx, userID, friendID); err != nil {
		return err
	}
	observability.FriendRequestTransitions.WithLabelValues("removed").Inc()

	s.events.PublishEvent(ctx, userID, EventFriendRemoved, map[string]uint{"user_id": friendID})
	s.events.PublishEvent(ctx, friendID, EventFriendRemoved, map[string]uint{"user_id": userID})
	return nil
}

// GetReceivedRequests returns pending requests addressed to userID, newest first.
func (s *FriendService) GetReceivedRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.requests.ListReceived(ctx, userID)
}

// GetSentRequests returns pending requests sent by userID, newest first.
func (s *FriendService) GetSentRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.requests.ListSent(ctx, userID)
}

// GetFriends returns the friends of userID.
func (s *FriendService) GetFriends(ctx context.Context, userID uint) ([]models.User, error) {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("User", userID)
	}
	friends, err := s.friendships.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if friends == nil {
		friends = []models.User{}
	}
	return friends, nil
}

// FriendIDs returns the IDs of userID's current friends. It always reads the
// friendship table so visibility follows a removal on any instance at once.
func (s *FriendService) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.friendships.FriendIDs(ctx, userID)
}

// GetFriendshipStatus reports how userID relates to targetID.
func (s *FriendService) GetFriendshipStatus(ctx context.Context, userID, targetID uint) (*FriendshipStatus, error) {
	exists, err := s.userRepo.Exists(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("User", targetID)
	}

	friends, err := s.friendships.Exists(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if friends {
		return &FriendshipStatus{Status: FriendshipStatusFriends}, nil
	}

	sent, err := s.requests.GetBetween(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if sent != nil && sent.IsPending() {
		return &FriendshipStatus{Status: FriendshipStatusPendingSent, RequestID: sent.ID}, nil
	}

	received, err := s.requests.GetBetween(ctx, targetID, userID)
	if err != nil {
		return nil, err
	}
	if received != nil && received.IsPending() {
		return &FriendshipStatus{Status: FriendshipStatusPendingReceived, RequestID: received.ID}, nil
	}

	return &FriendshipStatus{Status: FriendshipStatusNone}, nil
}

func requestPayload(req *models.FriendRequest) map[string]interface{} {
	return map[string]interface{}{
		"request_id": req.ID,
		"status":     req.Status,
		"sender":     userSummaryPtr(&req.Sender),
		"receiver":   userSummaryPtr(&req.Receiver),
	}
}

func friendPayload(friendID uint, friend *models.User) map[string]interface{} {
	return map[string]interface{}{
		"user_id": friendID,
		"user":    userSummaryPtr(friend),
	}
}
