package service

import (
	"context"
	"time"

	"circle/internal/models"
	"circle/internal/observability"
	"circle/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// FeedPageSize is the number of posts per feed page.
const FeedPageSize = 10

// FriendIDSource resolves a user's friend set.
type FriendIDSource interface {
	FriendIDs(ctx context.Context, userID uint) ([]uint, error)
}

// FeedPage is one page of the home feed.
type FeedPage struct {
	Posts []*models.Post `json:"posts"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
}

// FeedService answers the friend-scoped read queries.
type FeedService struct {
	posts   repository.PostRepository
	stories repository.StoryRepository
	friends FriendIDSource
	now     func() time.Time
}

// NewFeedService returns a new FeedService.
func NewFeedService(posts repository.PostRepository, stories repository.StoryRepository, friends FriendIDSource) *FeedService {
	return &FeedService{
		posts:   posts,
		stories: stories,
		friends: friends,
		now:     time.Now,
	}
}

// VisibleAuthors returns userID followed by every friend of userID.
func (s *FeedService) VisibleAuthors(ctx context.Context, userID uint) ([]uint, error) {
	friendIDs, err := s.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append([]uint{userID}, friendIDs...), nil
}

// Feed returns posts by userID and their friends, newest first.
func (s *FeedService) Feed(ctx context.Context, userID uint, page int) (out *FeedPage, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "FeedService", "Feed",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int("page", page),
	)
	defer func() { observability.EndSpan(span, err) }()

	if page < 1 {
		page = 1
	}
	authors, err := s.VisibleAuthors(ctx, userID)
	if err != nil {
		return nil, err
	}

	posts, err := s.posts.ListByAuthors(ctx, authors, FeedPageSize, (page-1)*FeedPageSize, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.posts.CountByAuthors(ctx, authors)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return &FeedPage{Posts: posts, Page: page, Pages: pageCount(total, FeedPageSize)}, nil
}

// Stories returns stories by userID and their friends posted within the
// retention window, oldest first.
func (s *FeedService) Stories(ctx context.Context, userID uint) ([]models.Story, error) {
	authors, err := s.VisibleAuthors(ctx, userID)
	if err != nil {
		return nil, err
	}
	stories, err := s.stories.ListVisible(ctx, authors, s.now().Add(-models.StoryRetention))
	if err != nil {
		return nil, err
	}
	if stories == nil {
		stories = []models.Story{}
	}
	return stories, nil
}

// CanSee reports whether viewerID may see content authored by authorID.
func (s *FeedService) CanSee(ctx context.Context, viewerID, authorID uint) (bool, error) {
	if viewerID == authorID {
		return true, nil
	}
	friendIDs, err := s.friends.FriendIDs(ctx, viewerID)
	if err != nil {
		return false, err
	}
	for _, id := range friendIDs {
		if id == authorID {
			return true, nil
		}
	}
	return false, nil
}
