package repository

import (
	"testing"
	"time"

	"circle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_FeedAndLikes(t *testing.T) {
	db := setupSQLiteDB(t)
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	base := time.Now().Add(-time.Hour)
	mk := func(author *models.User, caption string, offset time.Duration) *models.Post {
		p := &models.Post{UserID: author.ID, Caption: caption, MediaType: models.MediaTypeNone, CreatedAt: base.Add(offset)}
		require.NoError(t, posts.Create(bg, p))
		return p
	}
	first := mk(alice, "first", 0)
	second := mk(bob, "second", time.Minute)
	mk(carol, "hidden", 2*time.Minute)

	t.Run("ListByAuthors orders newest first and filters authors", func(t *testing.T) {
		got, err := posts.ListByAuthors(bg, []uint{alice.ID, bob.ID}, 10, 0, alice.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, second.ID, got[0].ID)
		assert.Equal(t, first.ID, got[1].ID)
		assert.Equal(t, "bob", got[0].User.Username)

		total, err := posts.CountByAuthors(bg, []uint{alice.ID, bob.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("Like is idempotent and reflected in counts", func(t *testing.T) {
		require.NoError(t, posts.Like(bg, bob.ID, first.ID))
		require.NoError(t, posts.Like(bg, bob.ID, first.ID))

		got, err := posts.GetByID(bg, first.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.LikesCount)
		assert.True(t, got.Liked)

		require.NoError(t, posts.Unlike(bg, bob.ID, first.ID))
		liked, err := posts.IsLiked(bg, bob.ID, first.ID)
		require.NoError(t, err)
		assert.False(t, liked)
	})

	t.Run("Comments list ascending and delete with post", func(t *testing.T) {
		c1 := &models.Comment{PostID: first.ID, UserID: bob.ID, Content: "one"}
		c2 := &models.Comment{PostID: first.ID, UserID: alice.ID, Content: "two"}
		require.NoError(t, comments.Create(bg, c1))
		require.NoError(t, comments.Create(bg, c2))
		require.NoError(t, comments.Like(bg, alice.ID, c1.ID))

		list, err := comments.ListByPost(bg, first.ID, alice.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "one", list[0].Content)
		assert.Equal(t, 1, list[0].LikesCount)
		assert.True(t, list[0].Liked)

		got, err := posts.GetByID(bg, first.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, got.CommentsCount)

		require.NoError(t, posts.Delete(bg, first.ID))
		_, err = posts.GetByID(bg, first.ID, 0)
		assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

		_, err = comments.GetByID(bg, c1.ID)
		assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	})

	t.Run("Delete missing post", func(t *testing.T) {
		err := posts.Delete(bg, 4242)
		assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	})
}

func TestStoryRepository(t *testing.T) {
	db := setupSQLiteDB(t)
	stories := NewStoryRepository(db)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	now := time.Now()

	old := &models.Story{UserID: alice.ID, MediaURL: "/uploads/old.jpg", MediaType: models.MediaTypeImage,
		CreatedAt: now.Add(-25 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	earlier := &models.Story{UserID: bob.ID, MediaURL: "/uploads/a.jpg", MediaType: models.MediaTypeImage,
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(22 * time.Hour)}
	later := &models.Story{UserID: alice.ID, MediaURL: "/uploads/b.jpg", MediaType: models.MediaTypeImage,
		CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(23 * time.Hour)}
	for _, s := range []*models.Story{old, earlier, later} {
		require.NoError(t, stories.Create(bg, s))
	}

	require.NoError(t, stories.RecordView(bg, earlier.ID, alice.ID))
	require.NoError(t, stories.RecordView(bg, earlier.ID, alice.ID))

	visible, err := stories.ListVisible(bg, []uint{alice.ID, bob.ID}, now.Add(-models.StoryRetention))
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, earlier.ID, visible[0].ID)
	assert.Equal(t, later.ID, visible[1].ID)
	assert.Equal(t, 1, visible[0].ViewCount)

	expired, err := stories.ListExpired(bg, now, 100)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)

	require.NoError(t, stories.DeleteByIDs(bg, []uint{old.ID}))
	_, err = stories.GetByID(bg, old.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestNotificationRepository(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewNotificationRepository(db)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	for _, typ := range []models.NotificationType{models.NotificationLike, models.NotificationRequest} {
		require.NoError(t, repo.Create(bg, &models.Notification{
			RecipientID: alice.ID, SenderID: bob.ID, Type: typ, Priority: models.PriorityFor(typ),
		}))
	}

	list, err := repo.ListForRecipient(bg, alice.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.NotificationRequest, list[0].Type)
	assert.Equal(t, "bob", list[0].Sender.Username)

	unread, err := repo.CountUnread(bg, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, repo.MarkRead(bg, list[0].ID))
	unread, _ = repo.CountUnread(bg, alice.ID)
	assert.Equal(t, int64(1), unread)

	require.NoError(t, repo.MarkAllRead(bg, alice.ID))
	unread, _ = repo.CountUnread(bg, alice.ID)
	assert.Equal(t, int64(0), unread)

	require.NoError(t, repo.Delete(bg, list[1].ID))
	total, err := repo.CountForRecipient(bg, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
