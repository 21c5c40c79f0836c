package service

import (
	"context"

	"circle/internal/cache"
	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/repository"
	"circle/internal/validation"
)

// mentionResolver turns @username mentions into user IDs, consulting the
// username index before the database.
type mentionResolver struct {
	users repository.UserRepository
	index *cache.UsernameIndex
}

// resolve returns the IDs of the existing users among names, in names order.
func (m mentionResolver) resolve(ctx context.Context, names []string) ([]uint, error) {
	found, missing := m.index.Lookup(names)
	if len(missing) > 0 {
		users, err := m.users.GetByUsernames(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			found[u.Username] = u.ID
			m.index.Remember(u.Username, u.ID)
		}
	}

	ids := make([]uint, 0, len(found))
	for _, name := range names {
		if id, ok := found[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// notify sends a mention notification to every existing user named with
// @username in text. Users in skip are not notified.
func (m mentionResolver) notify(ctx context.Context, sink NotificationSink, text string, senderID, postID uint, commentID *uint, skip ...uint) {
	names := validation.ExtractMentions(text)
	if len(names) == 0 {
		return
	}
	ids, err := m.resolve(ctx, names)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to resolve mentions", "error", err)
		return
	}

	skipped := make(map[uint]struct{}, len(skip))
	for _, id := range skip {
		skipped[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := skipped[id]; ok {
			continue
		}
		pid := postID
		sink.Create(ctx, NotificationInput{
			RecipientID: id,
			SenderID:    senderID,
			Type:        models.NotificationMention,
			PostID:      &pid,
			CommentID:   commentID,
		})
	}
}
