package database

import "circle/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Friendship{},
		&models.FriendRequest{},
		&models.Post{},
		&models.Like{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Story{},
		&models.StoryView{},
		&models.Notification{},
	}
}
