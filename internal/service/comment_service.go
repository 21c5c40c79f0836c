package service

import (
	"context"
	"fmt"
	"strings"

	"circle/internal/cache"
	"circle/internal/models"
	"circle/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	sink        NotificationSink
	mentions    mentionResolver
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	sink NotificationSink,
	usernames *cache.UsernameIndex,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		sink:        sinkOrNoop(sink),
		mentions:    mentionResolver{users: userRepo, index: usernames},
	}
}

// CreateComment adds a comment to a post and notifies the post's author and
// anyone mentioned in it.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > models.MaxCommentLength {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", models.MaxCommentLength))
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content: content,
		UserID:  in.UserID,
		PostID:  in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	commentID := comment.ID
	s.sink.Create(ctx, NotificationInput{
		RecipientID: post.UserID,
		SenderID:    in.UserID,
		Type:        models.NotificationComment,
		PostID:      &post.ID,
		CommentID:   &commentID,
	})
	s.mentions.notify(ctx, s.sink, content, in.UserID, post.ID, &commentID, post.UserID)

	return s.commentRepo.GetByID(ctx, comment.ID)
}

// ListComments returns the comments on a post, oldest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint, currentUserID uint) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID, currentUserID)
}

// DeleteComment may be called by the comment's author or the post's author.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}

	if comment.UserID != in.UserID {
		post, err := s.postRepo.GetByID(ctx, comment.PostID, 0)
		if err != nil {
			return err
		}
		if post.UserID != in.UserID {
			return models.NewUnauthorizedError("Not authorized to delete this comment")
		}
	}

	return s.commentRepo.Delete(ctx, in.CommentID)
}

// ToggleLike likes or unlikes a comment and reports whether it is now liked.
func (s *CommentService) ToggleLike(ctx context.Context, userID, commentID uint) (bool, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return false, err
	}

	liked, err := s.commentRepo.IsLiked(ctx, userID, commentID)
	if err != nil {
		return false, err
	}
	if liked {
		return false, s.commentRepo.Unlike(ctx, userID, commentID)
	}

	if err := s.commentRepo.Like(ctx, userID, commentID); err != nil {
		return false, err
	}
	postID := comment.PostID
	s.sink.Create(ctx, NotificationInput{
		RecipientID: comment.UserID,
		SenderID:    userID,
		Type:        models.NotificationLike,
		PostID:      &postID,
		CommentID:   &comment.ID,
	})
	return true, nil
}
