package service

import (
	"context"
	"fmt"
	"strings"

	"circle/internal/cache"
	"circle/internal/models"
	"circle/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	maxBioLength      = 500
	maxFullNameLength = 100
	userSearchLimit   = 20
)

type UserService struct {
	userRepo    repository.UserRepository
	friendships repository.FriendshipRepository
	media       *MediaService
	redis       *redis.Client
}

type UpdateProfileInput struct {
	UserID         uint
	FullName       *string
	Bio            *string
	Location       *string
	Website        *string
	ProfilePicture *Upload
	CoverPhoto     *Upload
}

// NewUserService returns a UserService. A nil redis client disables profile caching.
func NewUserService(
	userRepo repository.UserRepository,
	friendships repository.FriendshipRepository,
	media *MediaService,
	redisClient *redis.Client,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		friendships: friendships,
		media:       media,
		redis:       redisClient,
	}
}

// GetMe returns the caller's account with its friend list.
func (s *UserService) GetMe(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	friends, err := s.friendships.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if friends == nil {
		friends = []models.User{}
	}
	user.Friends = friends
	return user, nil
}

// GetByUsername returns a public profile, served from Redis when cached.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return cache.Aside(ctx, s.redis, cache.ProfileKey(username), cache.ProfileTTL, func(ctx context.Context) (*models.User, error) {
		user, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, models.NewNotFoundError("User", username)
		}
		return user, nil
	})
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// UpdateProfile applies the non-nil fields and stores any uploaded images.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil {
		fullName := strings.TrimSpace(*in.FullName)
		if len(fullName) > maxFullNameLength {
			return nil, models.NewValidationError(fmt.Sprintf("Full name too long (max %d characters)", maxFullNameLength))
		}
		user.FullName = fullName
	}
	if in.Bio != nil {
		if len(*in.Bio) > maxBioLength {
			return nil, models.NewValidationError(fmt.Sprintf("Bio too long (max %d characters)", maxBioLength))
		}
		user.Bio = *in.Bio
	}
	if in.Location != nil {
		user.Location = strings.TrimSpace(*in.Location)
	}
	if in.Website != nil {
		user.Website = strings.TrimSpace(*in.Website)
	}

	var written []string
	store := func(up *Upload, prefix string, dst *string) error {
		if up == nil {
			return nil
		}
		if mediaType, err := MediaTypeOf(up.Filename); err != nil {
			return err
		} else if mediaType != models.MediaTypeImage {
			return models.NewValidationError("Profile images must be jpg or png")
		}
		stored, err := s.media.Save(ctx, prefix, *up)
		if err != nil {
			return err
		}
		written = append(written, stored.Keys()...)
		*dst = stored.URL
		return nil
	}
	if err := store(in.ProfilePicture, "profiles", &user.ProfilePicture); err != nil {
		s.media.Remove(ctx, written...)
		return nil, err
	}
	if err := store(in.CoverPhoto, "covers", &user.CoverPhoto); err != nil {
		s.media.Remove(ctx, written...)
		return nil, err
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		s.media.Remove(ctx, written...)
		return nil, err
	}
	cache.Invalidate(ctx, s.redis, cache.ProfileKey(user.Username))
	return user, nil
}

// Search matches username or full name. An empty query is rejected.
func (s *UserService) Search(ctx context.Context, query string) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	users, err := s.userRepo.Search(ctx, query, userSearchLimit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}
