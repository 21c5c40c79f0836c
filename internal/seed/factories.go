// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"circle/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account signs in with.
const DefaultPassword = "password123"

var nonUsernameChars = regexp.MustCompile(`[^a-z0-9_]+`)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the Seeder and by tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	rng   *rand.Rand

	passwordHash string
	seq          int
}

// NewFactory creates a Factory bound to db. A zero opts.RandSeed seeds from
// the clock.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cost := bcrypt.DefaultCost
	if opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	return &Factory{
		db:           db,
		opts:         opts,
		faker:        gofakeit.New(seed),
		rng:          rand.New(rand.NewSource(seed)), // #nosec G404: acceptable for seeding
		passwordHash: string(hash),
	}, nil
}

// pastTime returns a moment within the last maxAge.
func (f *Factory) pastTime(maxAge time.Duration) time.Time {
	if maxAge <= 0 {
		return time.Now()
	}
	return time.Now().Add(-time.Duration(f.rng.Int63n(int64(maxAge))))
}

func (f *Factory) maxAge() time.Duration {
	days := f.opts.MaxDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// username derives a unique handle from a first name.
func (f *Factory) username(first string) string {
	f.seq++
	base := nonUsernameChars.ReplaceAllString(strings.ToLower(first), "")
	if base == "" {
		base = "user"
	}
	if len(base) > 20 {
		base = base[:20]
	}
	return fmt.Sprintf("%s_%d", base, f.seq)
}

// BuildUser constructs a user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := f.username(first)
	user := &models.User{
		Username:       username,
		Email:          username + "@example.com",
		Password:       f.passwordHash,
		FullName:       first + " " + last,
		Bio:            f.faker.Sentence(10),
		Location:       f.faker.City(),
		ProfilePicture: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		CreatedAt:      f.pastTime(f.maxAge()),
	}
	if f.rng.Intn(3) == 0 {
		user.Website = f.faker.URL()
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post for author without persisting it. Roughly
// four in ten posts carry an image.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		UserID:    author.ID,
		Caption:   f.faker.Sentence(f.rng.Intn(20) + 3),
		MediaType: models.MediaTypeNone,
		CreatedAt: f.pastTime(f.maxAge()),
	}
	if f.rng.Intn(2) == 0 {
		post.Location = f.faker.City()
	}
	if f.rng.Float32() < 0.4 {
		seed := f.faker.UUID()
		post.MediaType = models.MediaTypeImage
		post.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/1080/1080", seed)
		post.ThumbnailURL = fmt.Sprintf("https://picsum.photos/seed/%s/320/320", seed)
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost constructs and persists a sample post for author.
func (f *Factory) CreatePost(author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a sample comment by author on post.
func (f *Factory) CreateComment(author *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content:   f.faker.Sentence(f.rng.Intn(12) + 3),
		UserID:    author.ID,
		PostID:    post.ID,
		CreatedAt: laterThan(post.CreatedAt, f.rng),
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from user on post.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	return f.db.Create(&models.Like{UserID: user.ID, PostID: post.ID}).Error
}

// CreateCommentLike persists a like from user on comment.
func (f *Factory) CreateCommentLike(user *models.User, comment *models.Comment) error {
	return f.db.Create(&models.CommentLike{UserID: user.ID, CommentID: comment.ID}).Error
}

// CreateFriendship records an accepted request from sender to receiver and
// the friendship edge it produced.
func (f *Factory) CreateFriendship(sender, receiver *models.User) error {
	return f.db.Transaction(func(tx *gorm.DB) error {
		req := &models.FriendRequest{
			SenderID:   sender.ID,
			ReceiverID: receiver.ID,
			Status:     models.FriendRequestAccepted,
		}
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		return tx.Create(models.NewFriendship(sender.ID, receiver.ID)).Error
	})
}

// CreateFriendRequest persists a pending request from sender to receiver.
func (f *Factory) CreateFriendRequest(sender, receiver *models.User) (*models.FriendRequest, error) {
	req := &models.FriendRequest{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Status:     models.FriendRequestPending,
	}
	if err := f.db.Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// CreateStory persists a live story for author posted within the last
// retention window.
func (f *Factory) CreateStory(author *models.User, overrides ...func(*models.Story)) (*models.Story, error) {
	created := f.pastTime(models.StoryRetention - time.Hour)
	seed := f.faker.UUID()
	story := &models.Story{
		UserID:       author.ID,
		MediaURL:     fmt.Sprintf("https://picsum.photos/seed/%s/1080/1920", seed),
		ThumbnailURL: fmt.Sprintf("https://picsum.photos/seed/%s/270/480", seed),
		MediaType:    models.MediaTypeImage,
		TextOffsetX:  float64(f.rng.Intn(200) - 100),
		TextOffsetY:  float64(f.rng.Intn(400) - 200),
		CreatedAt:    created,
		ExpiresAt:    created.Add(models.StoryRetention),
	}
	for _, override := range overrides {
		override(story)
	}
	if err := f.db.Create(story).Error; err != nil {
		return nil, err
	}
	return story, nil
}

// CreateNotification persists a notification with the priority its type implies.
func (f *Factory) CreateNotification(n *models.Notification) error {
	if n.RecipientID == n.SenderID {
		return nil
	}
	n.Priority = models.PriorityFor(n.Type)
	return f.db.Create(n).Error
}

func laterThan(t time.Time, rng *rand.Rand) time.Time {
	span := time.Since(t)
	if span <= 0 {
		return time.Now()
	}
	return t.Add(time.Duration(rng.Int63n(int64(span))))
}
