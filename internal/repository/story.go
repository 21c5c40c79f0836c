package repository

import (
	"context"
	"time"

	"circle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoryRepository defines persistence operations for stories.
type StoryRepository interface {
	Create(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, id uint) (*models.Story, error)
	ListVisible(ctx context.Context, authorIDs []uint, since time.Time) ([]models.Story, error)
	RecordView(ctx context.Context, storyID, viewerID uint) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Story, error)
	DeleteByIDs(ctx context.Context, ids []uint) error
}

type storyRepository struct {
	db *gorm.DB
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db *gorm.DB) StoryRepository {
	return &storyRepository{db: db}
}

func (r *storyRepository) Create(ctx context.Context, story *models.Story) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(story).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *storyRepository) GetByID(ctx context.Context, id uint) (*models.Story, error) {
	var story models.Story
	if err := r.db.WithContext(ctx).First(&story, id).Error; err != nil {
		return nil, lookupError(err, "Story", id)
	}
	return &story, nil
}

// ListVisible returns stories by authorIDs created after since, oldest first.
func (r *storyRepository) ListVisible(ctx context.Context, authorIDs []uint, since time.Time) ([]models.Story, error) {
	stories := []models.Story{}
	if len(authorIDs) == 0 {
		return stories, nil
	}
	if err := r.db.WithContext(ctx).
		Select("stories.*, (SELECT COUNT(*) FROM story_views WHERE story_views.story_id = stories.id) as view_count").
		Preload("User").
		Where("stories.user_id IN ? AND stories.created_at > ?", authorIDs, since).
		Order("stories.created_at ASC").
		Find(&stories).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return stories, nil
}

func (r *storyRepository) RecordView(ctx context.Context, storyID, viewerID uint) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.StoryView{StoryID: storyID, ViewerID: viewerID}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *storyRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Story, error) {
	var stories []models.Story
	if err := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&stories).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return stories, nil
}

func (r *storyRepository) DeleteByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("story_id IN ?", ids).Delete(&models.StoryView{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Story{}).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
