package service

import (
	"context"
	"time"

	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/observability"
	"circle/internal/repository"
)

const (
	// DefaultStorySweepInterval is used when no interval is configured.
	DefaultStorySweepInterval = 10 * time.Minute
	storySweepBatch           = 100
)

// CreateStoryInput is the payload for posting a story.
type CreateStoryInput struct {
	UserID      uint
	Media       *Upload
	TextOffsetX float64
	TextOffsetY float64
}

// StoryService posts stories and records views.
type StoryService struct {
	stories repository.StoryRepository
	media   *MediaService
	feed    *FeedService
	now     func() time.Time
}

// NewStoryService returns a new StoryService.
func NewStoryService(stories repository.StoryRepository, media *MediaService, feed *FeedService) *StoryService {
	return &StoryService{
		stories: stories,
		media:   media,
		feed:    feed,
		now:     time.Now,
	}
}

// CreateStory stores the uploaded media and a story that expires after
// models.StoryRetention.
func (s *StoryService) CreateStory(ctx context.Context, in CreateStoryInput) (*models.Story, error) {
	if in.Media == nil {
		return nil, models.NewValidationError("Media is required")
	}
	stored, err := s.media.Save(ctx, "stories", *in.Media)
	if err != nil {
		return nil, err
	}

	now := s.now()
	story := &models.Story{
		UserID:         in.UserID,
		MediaURL:       stored.URL,
		MediaObjectKey: stored.Key,
		ThumbnailURL:   stored.ThumbnailURL,
		ThumbnailKey:   stored.ThumbnailKey,
		MediaType:      stored.Type,
		TextOffsetX:    in.TextOffsetX,
		TextOffsetY:    in.TextOffsetY,
		CreatedAt:      now,
		ExpiresAt:      now.Add(models.StoryRetention),
	}
	if err := s.stories.Create(ctx, story); err != nil {
		s.media.Remove(ctx, stored.Keys()...)
		return nil, err
	}
	return s.stories.GetByID(ctx, story.ID)
}

// ListStories returns the stories visible to userID.
func (s *StoryService) ListStories(ctx context.Context, userID uint) ([]models.Story, error) {
	return s.feed.Stories(ctx, userID)
}

// ViewStory records that viewerID opened storyID. Stories the viewer cannot
// see, including expired ones, are reported as not found.
func (s *StoryService) ViewStory(ctx context.Context, viewerID, storyID uint) error {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return err
	}
	if story.Expired(s.now()) {
		return models.NewNotFoundError("Story", storyID)
	}
	visible, err := s.feed.CanSee(ctx, viewerID, story.UserID)
	if err != nil {
		return err
	}
	if !visible {
		return models.NewNotFoundError("Story", storyID)
	}
	if viewerID == story.UserID {
		return nil
	}
	return s.stories.RecordView(ctx, storyID, viewerID)
}

// StorySweeper deletes expired stories and their media on a fixed interval.
// Visibility never depends on it; it only reclaims storage.
type StorySweeper struct {
	stories  repository.StoryRepository
	media    *MediaService
	interval time.Duration
	now      func() time.Time
}

// NewStorySweeper returns a sweeper. An interval of zero disables Run.
func NewStorySweeper(stories repository.StoryRepository, media *MediaService, interval time.Duration) *StorySweeper {
	return &StorySweeper{
		stories:  stories,
		media:    media,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (w *StorySweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		middleware.Logger.Info("story sweeper disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.SweepOnce(ctx); err != nil {
				middleware.Logger.ErrorContext(ctx, "story sweep failed", "deleted", n, "error", err)
			} else if n > 0 {
				middleware.Logger.InfoContext(ctx, "story sweep finished", "deleted", n)
			}
		}
	}
}

// SweepOnce deletes every story expired at the current time and returns how
// many were removed.
func (w *StorySweeper) SweepOnce(ctx context.Context) (int, error) {
	now := w.now()
	deleted := 0
	for {
		expired, err := w.stories.ListExpired(ctx, now, storySweepBatch)
		if err != nil {
			return deleted, err
		}
		if len(expired) == 0 {
			return deleted, nil
		}

		ids := make([]uint, 0, len(expired))
		for _, story := range expired {
			ids = append(ids, story.ID)
		}
		if err := w.stories.DeleteByIDs(ctx, ids); err != nil {
			return deleted, err
		}
		for _, story := range expired {
			w.media.Remove(ctx, story.MediaObjectKey, story.ThumbnailKey)
		}

		deleted += len(ids)
		observability.StoriesSwept.Add(float64(len(ids)))
		if len(expired) < storySweepBatch {
			return deleted, nil
		}
	}
}
