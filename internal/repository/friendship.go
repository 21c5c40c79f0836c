package repository

import (
	"context"

	"circle/internal/models"

	"gorm.io/gorm"
)

// FriendshipRepository reads the undirected friendship edges.
// Edges are written only through FriendRequestRepository so they change together with the ledger.
type FriendshipRepository interface {
	Exists(ctx context.Context, userA, userB uint) (bool, error)
	FriendIDs(ctx context.Context, userID uint) ([]uint, error)
	ListFriends(ctx context.Context, userID uint) ([]models.User, error)
}

type friendshipRepository struct {
	db *gorm.DB
}

// NewFriendshipRepository creates a new friendship repository
func NewFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &friendshipRepository{db: db}
}

func (r *friendshipRepository) Exists(ctx context.Context, userA, userB uint) (bool, error) {
	low, high := models.CanonicalPair(userA, userB)
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *friendshipRepository) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var edges []models.Friendship
	if err := r.db.WithContext(ctx).
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	ids := make([]uint, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.Other(userID))
	}
	return ids, nil
}

func (r *friendshipRepository) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Joins("JOIN friendships f ON (users.id = f.user_low_id OR users.id = f.user_high_id)").
		Where("(f.user_low_id = ? OR f.user_high_id = ?) AND users.id <> ?", userID, userID, userID).
		Order("users.username ASC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
