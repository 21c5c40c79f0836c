package service

import (
	"context"
	"fmt"
	"strings"

	"circle/internal/cache"
	"circle/internal/models"
	"circle/internal/repository"
)

// UserPostsPageSize is the number of posts per page on a profile.
const UserPostsPageSize = 10

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	sink     NotificationSink
	media    *MediaService
	mentions mentionResolver
}

type CreatePostInput struct {
	UserID   uint
	Caption  string
	Location string
	Media    *Upload
}

type UpdatePostInput struct {
	UserID   uint
	PostID   uint
	Caption  *string
	Location *string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	sink NotificationSink,
	media *MediaService,
	usernames *cache.UsernameIndex,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		sink:     sinkOrNoop(sink),
		media:    media,
		mentions: mentionResolver{users: userRepo, index: usernames},
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	caption := strings.TrimSpace(in.Caption)
	if caption == "" && in.Media == nil {
		return nil, models.NewValidationError("Post must have a caption or media")
	}
	if len(caption) > models.MaxCaptionLength {
		return nil, models.NewValidationError(fmt.Sprintf("Caption too long (max %d characters)", models.MaxCaptionLength))
	}

	post := &models.Post{
		UserID:    in.UserID,
		Caption:   caption,
		Location:  strings.TrimSpace(in.Location),
		MediaType: models.MediaTypeNone,
	}

	var stored *StoredMedia
	if in.Media != nil {
		var err error
		stored, err = s.media.Save(ctx, "posts", *in.Media)
		if err != nil {
			return nil, err
		}
		post.MediaURL = stored.URL
		post.MediaObjectKey = stored.Key
		post.ThumbnailURL = stored.ThumbnailURL
		post.ThumbnailKey = stored.ThumbnailKey
		post.MediaType = stored.Type
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		if stored != nil {
			s.media.Remove(ctx, stored.Keys()...)
		}
		return nil, err
	}

	s.mentions.notify(ctx, s.sink, caption, in.UserID, post.ID, nil)

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, currentUserID)
}

// GetUserPosts lists the posts of the account named username, newest first.
func (s *PostService) GetUserPosts(ctx context.Context, username string, page int, currentUserID uint) ([]*models.Post, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	if page < 1 {
		page = 1
	}
	posts, err := s.postRepo.GetByUserID(ctx, user.ID, UserPostsPageSize, (page-1)*UserPostsPageSize, currentUserID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only update your own posts")
	}

	if in.Caption != nil {
		caption := strings.TrimSpace(*in.Caption)
		if len(caption) > models.MaxCaptionLength {
			return nil, models.NewValidationError(fmt.Sprintf("Caption too long (max %d characters)", models.MaxCaptionLength))
		}
		if caption == "" && post.MediaType == models.MediaTypeNone {
			return nil, models.NewValidationError("Post must have a caption or media")
		}
		post.Caption = caption
	}
	if in.Location != nil {
		post.Location = strings.TrimSpace(*in.Location)
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes the post, its comments and likes, then its stored media.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}
	if post.UserID != in.UserID {
		return models.NewUnauthorizedError("You can only delete your own posts")
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return err
	}
	s.media.Remove(ctx, post.MediaObjectKey, post.ThumbnailKey)
	return nil
}

// ToggleLike likes the post, or unlikes it if userID already liked it. A new
// like notifies the post's author.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	if post.Liked {
		if err := s.postRepo.Unlike(ctx, userID, postID); err != nil {
			return nil, err
		}
	} else {
		if err := s.postRepo.Like(ctx, userID, postID); err != nil {
			return nil, err
		}
		s.sink.Create(ctx, NotificationInput{
			RecipientID: post.UserID,
			SenderID:    userID,
			Type:        models.NotificationLike,
			PostID:      &post.ID,
		})
	}

	return s.postRepo.GetByID(ctx, postID, userID)
}
