package models

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFriendshipCanonicalOrder(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint
		low, hi uint
	}{
		{"already ordered", 1, 2, 1, 2},
		{"reversed", 9, 4, 4, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFriendship(tt.a, tt.b)
			assert.Equal(t, tt.low, f.UserLowID)
			assert.Equal(t, tt.hi, f.UserHighID)
			assert.Equal(t, tt.b, f.Other(tt.a))
			assert.True(t, f.Involves(tt.a))
			assert.False(t, f.Involves(100))
		})
	}
}

func TestFriendshipBeforeCreate(t *testing.T) {
	f := &Friendship{UserLowID: 7, UserHighID: 3}
	require.NoError(t, f.BeforeCreate(nil))
	assert.Equal(t, uint(3), f.UserLowID)
	assert.Equal(t, uint(7), f.UserHighID)

	self := &Friendship{UserLowID: 5, UserHighID: 5}
	assert.ErrorIs(t, self.BeforeCreate(nil), ErrSelfFriendship)
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, PriorityHigh, PriorityFor(NotificationRequest))
	assert.Equal(t, PriorityHigh, PriorityFor(NotificationMention))
	assert.Equal(t, PriorityMedium, PriorityFor(NotificationLike))
	assert.Equal(t, PriorityMedium, PriorityFor(NotificationComment))
	assert.Equal(t, PriorityMedium, PriorityFor(NotificationFollow))
	assert.False(t, NotificationType("poke").Valid())
}

func TestStoryExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, Story{ExpiresAt: now}.Expired(now))
	assert.False(t, Story{ExpiresAt: now.Add(time.Minute)}.Expired(now))
}

func TestErrorCodeUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewConflictError("dup"))
	assert.Equal(t, CodeConflict, ErrorCode(wrapped))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
}

func TestRespondWithErrorHidesInternalDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("pq: password leaked")))
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, errors.New("raw driver error"))
	})

	for _, path := range []string{"/internal", "/plain"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

		buf := make([]byte, 512)
		n, _ := resp.Body.Read(buf)
		body := string(buf[:n])
		assert.Contains(t, body, "Internal server error")
		assert.NotContains(t, body, "leaked")
		assert.NotContains(t, body, "raw driver")
	}
}
