package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"circle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type friendRequestRepoStub struct {
	createFn           func(context.Context, *models.FriendRequest) error
	replaceStaleFn     func(context.Context, uint, *models.FriendRequest) error
	getByIDFn          func(context.Context, uint) (*models.FriendRequest, error)
	getBetweenFn       func(context.Context, uint, uint) (*models.FriendRequest, error)
	listReceivedFn     func(context.Context, uint) ([]models.FriendRequest, error)
	listSentFn         func(context.Context, uint) ([]models.FriendRequest, error)
	deleteFn           func(context.Context, uint) error
	acceptFn           func(context.Context, uint) (*models.Friendship, error)
	removeFriendshipFn func(context.Context, uint, uint) error
}

func (s *friendRequestRepoStub) Create(ctx context.Context, req *models.FriendRequest) error {
	return s.createFn(ctx, req)
}
func (s *friendRequestRepoStub) ReplaceStale(ctx context.Context, staleID uint, req *models.FriendRequest) error {
	return s.replaceStaleFn(ctx, staleID, req)
}
func (s *friendRequestRepoStub) GetByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	return s.getByIDFn(ctx, id)
}
func (s *friendRequestRepoStub) GetBetween(ctx context.Context, senderID, receiverID uint) (*models.FriendRequest, error) {
	return s.getBetweenFn(ctx, senderID, receiverID)
}
func (s *friendRequestRepoStub) ListReceived(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.listReceivedFn(ctx, userID)
}
func (s *friendRequestRepoStub) ListSent(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.listSentFn(ctx, userID)
}
func (s *friendRequestRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *friendRequestRepoStub) Accept(ctx context.Context, id uint) (*models.Friendship, error) {
	return s.acceptFn(ctx, id)
}
func (s *friendRequestRepoStub) RemoveFriendship(ctx context.Context, userA, userB uint) error {
	return s.removeFriendshipFn(ctx, userA, userB)
}

type friendshipRepoStub struct {
	existsFn      func(context.Context, uint, uint) (bool, error)
	friendIDsFn   func(context.Context, uint) ([]uint, error)
	listFriendsFn func(context.Context, uint) ([]models.User, error)
}

func (s *friendshipRepoStub) Exists(ctx context.Context, userA, userB uint) (bool, error) {
	return s.existsFn(ctx, userA, userB)
}
func (s *friendshipRepoStub) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.friendIDsFn(ctx, userID)
}
func (s *friendshipRepoStub) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	return s.listFriendsFn(ctx, userID)
}

type userRepoStub struct {
	getByIDFn         func(context.Context, uint) (*models.User, error)
	getByIDsFn        func(context.Context, []uint) ([]models.User, error)
	getByEmailFn      func(context.Context, string) (*models.User, error)
	getByUsernameFn   func(context.Context, string) (*models.User, error)
	getByUsernamesFn  func(context.Context, []string) ([]models.User, error)
	getByResetTokenFn func(context.Context, string, time.Time) (*models.User, error)
	existsFn          func(context.Context, uint) (bool, error)
	searchFn          func(context.Context, string, int) ([]models.User, error)
	createFn          func(context.Context, *models.User) error
	updateFn          func(context.Context, *models.User) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	return s.getByUsernamesFn(ctx, usernames)
}
func (s *userRepoStub) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.getByResetTokenFn(ctx, tokenHash, now)
}
func (s *userRepoStub) Exists(ctx context.Context, id uint) (bool, error) {
	return s.existsFn(ctx, id)
}
func (s *userRepoStub) Search(ctx context.Context, q string, limit int) ([]models.User, error) {
	return s.searchFn(ctx, q, limit)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:         func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByIDsFn:        func(context.Context, []uint) ([]models.User, error) { return nil, nil },
		getByEmailFn:      func(context.Context, string) (*models.User, error) { return nil, nil },
		getByUsernameFn:   func(context.Context, string) (*models.User, error) { return nil, nil },
		getByUsernamesFn:  func(context.Context, []string) ([]models.User, error) { return nil, nil },
		getByResetTokenFn: func(context.Context, string, time.Time) (*models.User, error) { return nil, nil },
		existsFn:          func(context.Context, uint) (bool, error) { return true, nil },
		searchFn:          func(context.Context, string, int) ([]models.User, error) { return nil, nil },
		createFn:          func(context.Context, *models.User) error { return nil },
		updateFn:          func(context.Context, *models.User) error { return nil },
	}
}

func noopFriendRequestRepo() *friendRequestRepoStub {
	return &friendRequestRepoStub{
		createFn:       func(context.Context, *models.FriendRequest) error { return nil },
		replaceStaleFn: func(context.Context, uint, *models.FriendRequest) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.FriendRequest, error) {
			return &models.FriendRequest{ID: id, Status: models.FriendRequestPending}, nil
		},
		getBetweenFn:       func(context.Context, uint, uint) (*models.FriendRequest, error) { return nil, nil },
		listReceivedFn:     func(context.Context, uint) ([]models.FriendRequest, error) { return nil, nil },
		listSentFn:         func(context.Context, uint) ([]models.FriendRequest, error) { return nil, nil },
		deleteFn:           func(context.Context, uint) error { return nil },
		acceptFn:           func(context.Context, uint) (*models.Friendship, error) { return &models.Friendship{}, nil },
		removeFriendshipFn: func(context.Context, uint, uint) error { return nil },
	}
}

func noopFriendshipRepo() *friendshipRepoStub {
	return &friendshipRepoStub{
		existsFn:      func(context.Context, uint, uint) (bool, error) { return false, nil },
		friendIDsFn:   func(context.Context, uint) ([]uint, error) { return nil, nil },
		listFriendsFn: func(context.Context, uint) ([]models.User, error) { return nil, nil },
	}
}

type recordingSink struct {
	mu    sync.Mutex
	items []NotificationInput
}

func (r *recordingSink) Create(_ context.Context, in NotificationInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, in)
}

func (r *recordingSink) all() []NotificationInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]NotificationInput(nil), r.items...)
}

type publishedEvent struct {
	UserID uint
	Type   string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *recordingPublisher) PublishEvent(_ context.Context, userID uint, eventType string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{UserID: userID, Type: eventType})
}

func (r *recordingPublisher) all() []publishedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]publishedEvent(nil), r.events...)
}

func requireAppCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %#v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestFriendServiceSendFriendRequestSelf(t *testing.T) {
	svc := NewFriendService(noopFriendRequestRepo(), noopFriendshipRepo(), noopUserRepo(), nil, nil)
	_, err := svc.SendFriendRequest(context.Background(), 3, 3)
	requireAppCode(t, err, models.CodeInvalidOperation)
}

func TestFriendServiceSendFriendRequestUnknownReceiver(t *testing.T) {
	users := noopUserRepo()
	users.existsFn = func(context.Context, uint) (bool, error) { return false, nil }

	svc := NewFriendService(noopFriendRequestRepo(), noopFriendshipRepo(), users, nil, nil)
	_, err := svc.SendFriendRequest(context.Background(), 1, 2)
	requireAppCode(t, err, models.CodeNotFound)
}

func TestFriendServiceSendFriendRequestAlreadyFriends(t *testing.T) {
	friendships := noopFriendshipRepo()
	friendships.existsFn = func(context.Context, uint, uint) (bool, error) { return true, nil }

	svc := NewFriendService(noopFriendRequestRepo(), friendships, noopUserRepo(), nil, nil)
	_, err := svc.SendFriendRequest(context.Background(), 1, 2)
	requireAppCode(t, err, models.CodeConflict)
	assert.Contains(t, err.Error(), "already friends")
}

func TestFriendServiceSendFriendRequestPendingEitherDirection(t *testing.T) {
	tests := []struct {
		name     string
		sender   uint
		receiver uint
		message  string
	}{
		{name: "same direction", sender: 1, receiver: 2, message: "Friend request already pending"},
		{name: "reverse direction", sender: 1, receiver: 2, message: "This user has already sent you a friend request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := noopFriendRequestRepo()
			reqs.getBetweenFn = func(_ context.Context, from, to uint) (*models.FriendRequest, error) {
				forward := from == tt.sender && to == tt.receiver
				if (tt.name == "same direction") == forward {
					return &models.FriendRequest{ID: 4, SenderID: from, ReceiverID: to, Status: models.FriendRequestPending}, nil
				}
				return nil, nil
			}
			created := false
			reqs.createFn = func(context.Context, *models.FriendRequest) error {
				created = true
				return nil
			}

			svc := NewFriendService(reqs, noopFriendshipRepo(), noopUserRepo(), nil, nil)
			_, err := svc.SendFriendRequest(context.Background(), tt.sender, tt.receiver)
			requireAppCode(t, err, models.CodeConflict)
			assert.Equal(t, tt.message, err.Error())
			assert.False(t, created)
		})
	}
}

func TestFriendServiceSendFriendRequestReplacesStaleRecord(t *testing.T) {
	reqs := noopFriendRequestRepo()
	reqs.getBetweenFn = func(_ context.Context, from, to uint) (*models.FriendRequest, error) {
		if from == 1 && to == 2 {
			return &models.FriendRequest{ID: 9, SenderID: 1, ReceiverID: 2, Status: models.FriendRequestAccepted}, nil
		}
		return nil, nil
	}
	var replaced uint
	reqs.replaceStaleFn = func(_ context.Context, staleID uint, req *models.FriendRequest) error {
		replaced = staleID
		req.ID = 10
		return nil
	}
	reqs.createFn = func(context.Context, *models.FriendRequest) error {
		t.Fatal("create must not be used when a stale record exists")
		return nil
	}

	sink := &recordingSink{}
	events := &recordingPublisher{}
	svc := NewFriendService(reqs, noopFriendshipRepo(), noopUserRepo(), sink, events)
	req, err := svc.SendFriendRequest(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint(9), replaced)
	assert.Equal(t, uint(10), req.ID)

	require.Len(t, sink.all(), 1)
	assert.Equal(t, NotificationInput{RecipientID: 2, SenderID: 1, Type: models.NotificationRequest}, sink.all()[0])
	assert.Equal(t, []publishedEvent{
		{UserID: 2, Type: EventFriendRequestReceived},
		{UserID: 1, Type: EventFriendRequestSent},
	}, events.all())
}

func TestFriendServiceAcceptGuards(t *testing.T) {
	tests := []struct {
		name    string
		request *models.FriendRequest
		getErr  error
		actor   uint
		code    string
	}{
		{name: "missing", getErr: models.NewNotFoundError("Friend request", 5), actor: 11, code: models.CodeNotFound},
		{name: "wrong party", request: &models.FriendRequest{ID: 5, SenderID: 10, ReceiverID: 11, Status: models.FriendRequestPending}, actor: 12, code: models.CodeUnauthorized},
		{name: "sender cannot accept", request: &models.FriendRequest{ID: 5, SenderID: 10, ReceiverID: 11, Status: models.FriendRequestPending}, actor: 10, code: models.CodeUnauthorized},
		{name: "terminal", request: &models.FriendRequest{ID: 5, SenderID: 10, ReceiverID: 11, Status: models.FriendRequestAccepted}, actor: 11, code: models.CodeInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := noopFriendRequestRepo()
			reqs.getByIDFn = func(context.Context, uint) (*models.FriendRequest, error) {
				return tt.request, tt.getErr
			}
			reqs.acceptFn = func(context.Context, uint) (*models.Friendship, error) {
				t.Fatal("accept must not run when a guard fails")
				return nil, nil
			}
			sink := &recordingSink{}

			svc := NewFriendService(reqs, noopFriendshipRepo(), noopUserRepo(), sink, nil)
			_, err := svc.AcceptFriendRequest(context.Background(), tt.actor, 5)
			requireAppCode(t, err, tt.code)
			assert.Empty(t, sink.all())
		})
	}
}

func TestFriendServiceAcceptNotifiesSender(t *testing.T) {
	reqs := noopFriendRequestRepo()
	reqs.getByIDFn = func(context.Context, uint) (*models.FriendRequest, error) {
		return &models.FriendRequest{ID: 5, SenderID: 10, ReceiverID: 11, Status: models.FriendRequestPending}, nil
	}
	sink := &recordingSink{}
	events := &recordingPublisher{}
	svc := NewFriendService(reqs, noopFriendshipRepo(), noopUserRepo(), sink, events)

	req, err := svc.AcceptFriendRequest(context.Background(), 11, 5)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, req.Status)

	require.Len(t, sink.all(), 1)
	got := sink.all()[0]
	assert.Equal(t, uint(10), got.RecipientID)
	assert.Equal(t, uint(11), got.SenderID)
	assert.Equal(t, models.NotificationFollow, got.Type)
	assert.Equal(t, "accepted your friend request", got.Text)

	assert.Contains(t, events.all(), publishedEvent{UserID: 10, Type: EventFriendRequestAccepted})
	assert.Contains(t, events.all(), publishedEvent{UserID: 11, Type: EventFriendAdded})
}

func TestFriendServiceAcceptPropagatesTransactionError(t *testing.T) {
	reqs := noopFriendRequestRepo()
	reqs.getByIDFn = func(context.Context, uint) (*models.FriendRequest, error) {
		return &models.FriendRequest{ID: 5, SenderID: 10, ReceiverID: 11, Status: models.FriendRequestPending}, nil
	}
	reqs.acceptFn = func(context.Context, uint) (*models.Friendship, error) {
		return nil, models.NewInternalError(errors.New("tx failed"))
	}
	sink := &recordingSink{}

	svc := NewFriendService(reqs, noopFriendshipRepo(), noopUserRepo(), sink, nil)
	_, err := svc.AcceptFriendRequest(context.Background(), 11, 5)
	requireAppCode(t, err, models.CodeInternal)
	assert.Empty(t, sink.all())
}

func TestFriendServiceDeclineAndCancelParties(t *testing.T) {
	pending := func(context.Context, uint) (*models.FriendRequest, error) {
		return &models.FriendRequest{ID: 5, SenderID: 10, ReceiverID: 11, Status: models.FriendRequestPending}, nil
	}

	reqs := noopFriendRequestRepo()
	reqs.getByIDFn = pending
	deleted := 0
	reqs.deleteFn = func(context.Context, uint) error {
		deleted++
		return nil
	}
	svc := NewFriendService(reqs, noopFriendshipRepo(), noopUserRepo(), nil, nil)

	_, err := svc.DeclineFriendRequest(context.Background(), 10, 5)
	requireAppCode(t, err, models.CodeUnauthorized)
	_, err = svc.CancelFriendRequest(context.Background(), 11, 5)
	requireAppCode(t, err, models.CodeUnauthorized)
	assert.Equal(t, 0, deleted)

	_, err = svc.DeclineFriendRequest(context.Background(), 11, 5)
	require.NoError(t, err)
	_, err = svc.CancelFriendRequest(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestFriendServiceRemoveFriendNotFriends(t *testing.T) {
	reqs := noopFriendRequestRepo()
	reqs.removeFriendshipFn = func(context.Context, uint, uint) error {
		t.Fatal("nothing to remove")
		return nil
	}
	svc := NewFriendService(reqs, noopFriendshipRepo(), noopUserRepo(), nil, nil)
	err := svc.RemoveFriend(context.Background(), 1, 2)
	requireAppCode(t, err, models.CodeInvalidOperation)
}

func TestFriendServiceRemoveFriendUnknownUser(t *testing.T) {
	users := noopUserRepo()
	users.existsFn = func(_ context.Context, id uint) (bool, error) { return id != 2, nil }

	svc := NewFriendService(noopFriendRequestRepo(), noopFriendshipRepo(), users, nil, nil)
	err := svc.RemoveFriend(context.Background(), 1, 2)
	requireAppCode(t, err, models.CodeNotFound)
}

func TestFriendServiceGetFriendsUnknownUser(t *testing.T) {
	users := noopUserRepo()
	users.existsFn = func(context.Context, uint) (bool, error) { return false, nil }

	svc := NewFriendService(noopFriendRequestRepo(), noopFriendshipRepo(), users, nil, nil)
	_, err := svc.GetFriends(context.Background(), 4)
	requireAppCode(t, err, models.CodeNotFound)
}

func TestFriendServiceFriendIDsReadsEveryTime(t *testing.T) {
	calls := 0
	friendships := noopFriendshipRepo()
	friendships.friendIDsFn = func(context.Context, uint) ([]uint, error) {
		calls++
		if calls == 1 {
			return []uint{2, 3}, nil
		}
		return []uint{3}, nil
	}
	svc := NewFriendService(noopFriendRequestRepo(), friendships, noopUserRepo(), nil, nil)

	ids, err := svc.FriendIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{2, 3}, ids)

	ids, err = svc.FriendIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{3}, ids)
	assert.Equal(t, 2, calls)
}

func TestFriendServiceGetFriendshipStatus(t *testing.T) {
	reqs := noopFriendRequestRepo()
	reqs.getBetweenFn = func(_ context.Context, from, to uint) (*models.FriendRequest, error) {
		if from == 2 && to == 1 {
			return &models.FriendRequest{ID: 7, SenderID: 2, ReceiverID: 1, Status: models.FriendRequestPending}, nil
		}
		return nil, nil
	}
	svc := NewFriendService(reqs, noopFriendshipRepo(), noopUserRepo(), nil, nil)

	status, err := svc.GetFriendshipStatus(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, &FriendshipStatus{Status: FriendshipStatusPendingReceived, RequestID: 7}, status)

	status, err = svc.GetFriendshipStatus(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, &FriendshipStatus{Status: FriendshipStatusPendingSent, RequestID: 7}, status)

	status, err = svc.GetFriendshipStatus(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, FriendshipStatusNone, status.Status)
}
