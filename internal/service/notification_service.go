package service

import (
	"context"
	"time"

	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/observability"
	"circle/internal/repository"
)

// NotificationPageSize is the number of notifications returned per page.
const NotificationPageSize = 20

const notificationPushTimeout = 5 * time.Second

// NotificationInput describes one side-effect notification.
type NotificationInput struct {
	RecipientID uint
	SenderID    uint
	Type        models.NotificationType
	PostID      *uint
	CommentID   *uint
	Text        string
}

// NotificationSink accepts best-effort notifications. It never reports failure
// to the caller.
type NotificationSink interface {
	Create(ctx context.Context, in NotificationInput)
}

type noopSink struct{}

func (noopSink) Create(context.Context, NotificationInput) {}

func sinkOrNoop(s NotificationSink) NotificationSink {
	if s == nil {
		return noopSink{}
	}
	return s
}

// NotificationPage is one page of a recipient's notifications.
type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Page          int                   `json:"page"`
	Pages         int                   `json:"pages"`
	UnreadCount   int64                 `json:"unreadCount"`
}

// NotificationService stores notifications and serves the recipient API.
type NotificationService struct {
	repo      repository.NotificationRepository
	publisher EventPublisher
	tasks     TaskRunner
}

// NewNotificationService wires the sink. publisher and tasks may be nil, which
// disables the realtime push.
func NewNotificationService(repo repository.NotificationRepository, publisher EventPublisher, tasks TaskRunner) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisherOrNoop(publisher),
		tasks:     tasks,
	}
}

// Create persists a notification unless it would notify the sender about
// their own action.
func (s *NotificationService) Create(ctx context.Context, in NotificationInput) {
	if in.RecipientID == in.SenderID {
		return
	}

	n := &models.Notification{
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		Type:        in.Type,
		Priority:    models.PriorityFor(in.Type),
		PostID:      in.PostID,
		CommentID:   in.CommentID,
		Text:        in.Text,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		observability.NotificationFailures.WithLabelValues("persist").Inc()
		middleware.Logger.ErrorContext(ctx, "failed to create notification",
			"type", in.Type, "recipient_id", in.RecipientID, "sender_id", in.SenderID, "error", err)
		return
	}
	observability.NotificationsCreated.WithLabelValues(string(in.Type)).Inc()

	s.push(ctx, n)
}

func (s *NotificationService) push(ctx context.Context, n *models.Notification) {
	if s.tasks == nil {
		observability.NotificationFailures.WithLabelValues("push").Inc()
		return
	}
	snapshot := *n
	err := s.tasks.Go(ctx, notificationPushTimeout, func(ctx context.Context) {
		s.publisher.PublishEvent(ctx, snapshot.RecipientID, EventNotificationCreated, snapshot)
	})
	if err != nil {
		observability.NotificationFailures.WithLabelValues("push").Inc()
		middleware.Logger.WarnContext(ctx, "dropped notification push",
			"notification_id", n.ID, "recipient_id", n.RecipientID, "error", err)
	}
}

// List returns the newest notifications for recipientID along with the unread count.
func (s *NotificationService) List(ctx context.Context, recipientID uint, page int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	items, err := s.repo.ListForRecipient(ctx, recipientID, NotificationPageSize, (page-1)*NotificationPageSize)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountForRecipient(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &NotificationPage{
		Notifications: items,
		Page:          page,
		Pages:         pageCount(total, NotificationPageSize),
		UnreadCount:   unread,
	}, nil
}

// MarkRead marks one notification read. Only its recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, id, actorID uint) (*models.Notification, error) {
	n, err := s.ownedNotification(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	n.IsRead = true
	return n, nil
}

// MarkAllRead marks every notification of recipientID read.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uint) error {
	return s.repo.MarkAllRead(ctx, recipientID)
}

// Delete removes one notification. Only its recipient may do so.
func (s *NotificationService) Delete(ctx context.Context, id, actorID uint) error {
	if _, err := s.ownedNotification(ctx, id, actorID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *NotificationService) ownedNotification(ctx context.Context, id, actorID uint) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != actorID {
		return nil, models.NewUnauthorizedError("Not authorized to modify this notification")
	}
	return n, nil
}

// pageCount returns the number of pages needed for total items.
func pageCount(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
