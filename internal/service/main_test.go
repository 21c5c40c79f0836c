package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"circle/internal/cache"
	"circle/internal/database"
	"circle/internal/models"
	"circle/internal/repository"
	"circle/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

var bg = context.Background()

// setupSQLiteDB returns a fresh in-memory database with every persistent model migrated.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "hash", FullName: "User " + username}
	require.NoError(t, db.Create(u).Error)
	return u
}

type ledgerFixture struct {
	db            *gorm.DB
	friends       *FriendService
	notifications *NotificationService
	events        *recordingPublisher
}

func newLedgerFixture(t *testing.T, notificationRepo repository.NotificationRepository) *ledgerFixture {
	t.Helper()
	db := setupSQLiteDB(t)
	if notificationRepo == nil {
		notificationRepo = repository.NewNotificationRepository(db)
	}
	events := &recordingPublisher{}
	notifications := NewNotificationService(notificationRepo, events, inlineRunner{})
	friends := NewFriendService(
		repository.NewFriendRequestRepository(db),
		repository.NewFriendshipRepository(db),
		repository.NewUserRepository(db),
		notifications,
		events,
	)
	return &ledgerFixture{db: db, friends: friends, notifications: notifications, events: events}
}

// contentFixture wires the post, comment, feed and story services over one
// database and an in-memory blob store. Notifications are recorded, not stored.
type contentFixture struct {
	db       *gorm.DB
	store    *testutil.MemoryBlobStore
	names    *cache.UsernameIndex
	sink     *recordingSink
	friends  *FriendService
	posts    *PostService
	comments *CommentService
	feed     *FeedService
	stories  *StoryService
	sweeper  *StorySweeper
	users    *UserService
}

func newContentFixture(t *testing.T) *contentFixture {
	t.Helper()
	db := setupSQLiteDB(t)
	store := testutil.NewMemoryBlobStore()
	sink := &recordingSink{}
	media := NewMediaService(store, 0)

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	friendships := repository.NewFriendshipRepository(db)

	friends := NewFriendService(repository.NewFriendRequestRepository(db), friendships, userRepo, sink, nil)
	usernames := cache.NewUsernameIndex(64, time.Minute)
	feed := NewFeedService(postRepo, storyRepo, friends)
	return &contentFixture{
		db:       db,
		store:    store,
		names:    usernames,
		sink:     sink,
		friends:  friends,
		posts:    NewPostService(postRepo, userRepo, sink, media, usernames),
		comments: NewCommentService(repository.NewCommentRepository(db), postRepo, userRepo, sink, usernames),
		feed:     feed,
		stories:  NewStoryService(storyRepo, media, feed),
		sweeper:  NewStorySweeper(storyRepo, media, 0),
		users:    NewUserService(userRepo, friendships, media, nil),
	}
}

// befriend runs a full request and accept between a and b.
func (f *contentFixture) befriend(t *testing.T, a, b *models.User) {
	t.Helper()
	req, err := f.friends.SendFriendRequest(bg, a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.friends.AcceptFriendRequest(bg, b.ID, req.ID)
	require.NoError(t, err)
}

func (f *contentFixture) notificationsOf(typ models.NotificationType) []NotificationInput {
	var out []NotificationInput
	for _, n := range f.sink.all() {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}
