package repository

import (
	"context"
	"errors"

	"circle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FriendRequestRepository stores the directed friend request ledger. Operations that
// also touch the friendship edge run in a single transaction.
type FriendRequestRepository interface {
	Create(ctx context.Context, req *models.FriendRequest) error
	ReplaceStale(ctx context.Context, staleID uint, req *models.FriendRequest) error
	GetByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	GetBetween(ctx context.Context, senderID, receiverID uint) (*models.FriendRequest, error)
	ListReceived(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	ListSent(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	Delete(ctx context.Context, id uint) error
	Accept(ctx context.Context, id uint) (*models.Friendship, error)
	RemoveFriendship(ctx context.Context, userA, userB uint) error
}

type friendRequestRepository struct {
	db *gorm.DB
}

// NewFriendRequestRepository creates a new friend request repository
func NewFriendRequestRepository(db *gorm.DB) FriendRequestRepository {
	return &friendRequestRepository{db: db}
}

func (r *friendRequestRepository) Create(ctx context.Context, req *models.FriendRequest) error {
	if err := r.db.WithContext(ctx).Omit("Sender", "Receiver").Create(req).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Friend request already pending")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// ReplaceStale deletes a non-pending record and inserts req in its place.
func (r *friendRequestRepository) ReplaceStale(ctx context.Context, staleID uint, req *models.FriendRequest) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status <> ?", staleID, models.FriendRequestPending).
			Delete(&models.FriendRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError("Friend request already pending")
		}
		return tx.Omit("Sender", "Receiver").Create(req).Error
	})
	return wrapTxError(err, "Friend request already pending")
}

func (r *friendRequestRepository) GetByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		First(&req, id).Error; err != nil {
		return nil, lookupError(err, "Friend request", id)
	}
	return &req, nil
}

func (r *friendRequestRepository) GetBetween(ctx context.Context, senderID, receiverID uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *friendRequestRepository) ListReceived(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	if err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, models.FriendRequestPending).
		Preload("Sender").
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *friendRequestRepository) ListSent(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	if err := r.db.WithContext(ctx).
		Where("sender_id = ? AND status = ?", userID, models.FriendRequestPending).
		Preload("Receiver").
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *friendRequestRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.FriendRequest{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Accept marks the pending request accepted and creates the friendship edge.
// The edge insert is idempotent; a concurrent accept leaves one edge.
func (r *friendRequestRepository) Accept(ctx context.Context, id uint) (*models.Friendship, error) {
	var edge *models.Friendship
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.FriendRequest
		if err := tx.First(&req, id).Error; err != nil {
			return err
		}
		res := tx.Model(&models.FriendRequest{}).
			Where("id = ? AND status = ?", id, models.FriendRequestPending).
			Update("status", models.FriendRequestAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewInvalidOperationError("Friend request is no longer pending")
		}

		edge = models.NewFriendship(req.SenderID, req.ReceiverID)
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Friend request", id)
		}
		return nil, wrapTxError(err, "")
	}
	return edge, nil
}

// RemoveFriendship deletes the edge and every ledger record between the pair.
func (r *friendRequestRepository) RemoveFriendship(ctx context.Context, userA, userB uint) error {
	low, high := models.CanonicalPair(userA, userB)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_low_id = ? AND user_high_id = ?", low, high).Delete(&models.Friendship{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewInvalidOperationError("Not friends")
		}
		return tx.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
			Delete(&models.FriendRequest{}).Error
	})
	return wrapTxError(err, "")
}

// wrapTxError passes AppErrors through and classifies the rest. conflictMsg, when set,
// is used for unique violations.
func wrapTxError(err error, conflictMsg string) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if conflictMsg != "" && isUniqueConstraintError(err) {
		return models.NewConflictError(conflictMsg)
	}
	return models.NewInternalError(err)
}
