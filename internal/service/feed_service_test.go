package service

import (
	"testing"

	"circle/internal/models"
	"circle/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authorsOf(posts []*models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.User.Username)
	}
	return out
}

func TestFeedServiceFeedIsFriendScoped(t *testing.T) {
	f := newContentFixture(t)
	alice := createUser(t, f.db, "alice")
	bob := createUser(t, f.db, "bob")
	carol := createUser(t, f.db, "carol")
	f.befriend(t, alice, bob)

	for _, u := range []*models.User{alice, bob, carol} {
		_, err := f.posts.CreatePost(bg, CreatePostInput{UserID: u.ID, Caption: "from " + u.Username})
		require.NoError(t, err)
	}

	page, err := f.feed.Feed(bg, alice.ID, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, authorsOf(page.Posts))
	assert.Equal(t, 1, page.Pages)

	carolPage, err := f.feed.Feed(bg, carol.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, authorsOf(carolPage.Posts))

	require.NoError(t, f.friends.RemoveFriend(bg, alice.ID, bob.ID))
	page, err = f.feed.Feed(bg, alice.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, authorsOf(page.Posts))
}

func TestFeedServiceFeedPaging(t *testing.T) {
	f := newContentFixture(t)
	alice := createUser(t, f.db, "alice")

	empty, err := f.feed.Feed(bg, alice.ID, 1)
	require.NoError(t, err)
	assert.NotNil(t, empty.Posts)
	assert.Empty(t, empty.Posts)
	assert.Zero(t, empty.Pages)

	for i := 0; i < FeedPageSize+1; i++ {
		_, err := f.posts.CreatePost(bg, CreatePostInput{UserID: alice.ID, Caption: "p"})
		require.NoError(t, err)
	}

	page, err := f.feed.Feed(bg, alice.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Posts, FeedPageSize)
	assert.Equal(t, 2, page.Pages)

	last, err := f.feed.Feed(bg, alice.ID, 2)
	require.NoError(t, err)
	assert.Len(t, last.Posts, 1)
}

func TestFeedServiceCanSee(t *testing.T) {
	f := newContentFixture(t)
	alice := createUser(t, f.db, "alice")
	bob := createUser(t, f.db, "bob")
	carol := createUser(t, f.db, "carol")
	f.befriend(t, alice, bob)

	tests := []struct {
		name           string
		viewer, author uint
		want           bool
	}{
		{"self", alice.ID, alice.ID, true},
		{"friend", alice.ID, bob.ID, true},
		{"friend reverse", bob.ID, alice.ID, true},
		{"stranger", alice.ID, carol.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.feed.CanSee(bg, tt.viewer, tt.author)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFeedServiceRemovalVisibleAcrossInstances(t *testing.T) {
	f := newContentFixture(t)
	alice := createUser(t, f.db, "alice")
	bob := createUser(t, f.db, "bob")
	f.befriend(t, alice, bob)
	_, err := f.posts.CreatePost(bg, CreatePostInput{UserID: bob.ID, Caption: "from bob"})
	require.NoError(t, err)

	// A second instance over the same database.
	friendships := repository.NewFriendshipRepository(f.db)
	otherFriends := NewFriendService(repository.NewFriendRequestRepository(f.db), friendships,
		repository.NewUserRepository(f.db), nil, nil)
	otherFeed := NewFeedService(repository.NewPostRepository(f.db), repository.NewStoryRepository(f.db), otherFriends)

	ok, err := otherFeed.CanSee(bg, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, ok)
	page, err := otherFeed.Feed(bg, alice.ID, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, authorsOf(page.Posts))

	require.NoError(t, f.friends.RemoveFriend(bg, alice.ID, bob.ID))

	ok, err = otherFeed.CanSee(bg, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ids, err := otherFriends.FriendIDs(bg, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	page, err = otherFeed.Feed(bg, alice.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}
