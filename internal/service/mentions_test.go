package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"circle/internal/cache"
	"circle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMentionResolverQueriesOnlyUnknownNames(t *testing.T) {
	var queried [][]string
	users := noopUserRepo()
	users.getByUsernamesFn = func(_ context.Context, names []string) ([]models.User, error) {
		queried = append(queried, names)
		var out []models.User
		for _, n := range names {
			switch n {
			case "alice":
				out = append(out, models.User{ID: 1, Username: "alice"})
			case "bob":
				out = append(out, models.User{ID: 2, Username: "bob"})
			}
		}
		return out, nil
	}
	index := cache.NewUsernameIndex(16, time.Minute)
	m := mentionResolver{users: users, index: index}

	ids, err := m.resolve(bg, []string{"bob", "ghost", "alice"})
	require.NoError(t, err)
	assert.Equal(t, []uint{2, 1}, ids)
	assert.Equal(t, 2, index.Len())

	ids, err = m.resolve(bg, []string{"alice", "bob", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids)

	require.Len(t, queried, 2)
	assert.Equal(t, []string{"ghost"}, queried[1], "cached names are not queried again")
}

func TestMentionResolverWithoutIndex(t *testing.T) {
	calls := 0
	users := noopUserRepo()
	users.getByUsernamesFn = func(context.Context, []string) ([]models.User, error) {
		calls++
		return []models.User{{ID: 3, Username: "carol"}}, nil
	}
	m := mentionResolver{users: users}

	for i := 0; i < 2; i++ {
		ids, err := m.resolve(bg, []string{"carol"})
		require.NoError(t, err)
		assert.Equal(t, []uint{3}, ids)
	}
	assert.Equal(t, 2, calls)
}

func TestMentionResolverNotifySkipsAndSurvivesErrors(t *testing.T) {
	users := noopUserRepo()
	users.getByUsernamesFn = func(context.Context, []string) ([]models.User, error) {
		return []models.User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}}, nil
	}
	sink := &recordingSink{}
	m := mentionResolver{users: users, index: cache.NewUsernameIndex(16, time.Minute)}

	m.notify(bg, sink, "hi @alice and @bob", 9, 4, nil, 1)
	require.Len(t, sink.all(), 1)
	assert.Equal(t, uint(2), sink.all()[0].RecipientID)
	assert.Equal(t, models.NotificationMention, sink.all()[0].Type)

	users.getByUsernamesFn = func(context.Context, []string) ([]models.User, error) {
		return nil, errors.New("db down")
	}
	failing := &recordingSink{}
	mentionResolver{users: users}.notify(bg, failing, "hi @dave", 9, 4, nil)
	assert.Empty(t, failing.all())
}
