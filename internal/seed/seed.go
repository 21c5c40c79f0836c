package seed

import (
	"context"
	"fmt"

	"circle/internal/database"
	"circle/internal/middleware"
	"circle/internal/models"

	"gorm.io/gorm"
)

// Options configure the seeder.
type Options struct {
	Users           int
	FriendsPerUser  int
	PendingRequests int
	PostsPerUser    int
	MaxComments     int
	StoryRatio      float64
	MaxDays         int
	// SkipBcrypt hashes the shared password at the minimum cost.
	SkipBcrypt bool
	// Clean removes all existing rows before seeding.
	Clean bool
	// RandSeed makes a run reproducible; zero seeds from the clock.
	RandSeed int64
}

// DefaultOptions is a small populated network for local development.
func DefaultOptions() Options {
	return Options{
		Users:           50,
		FriendsPerUser:  6,
		PendingRequests: 20,
		PostsPerUser:    4,
		MaxComments:     3,
		StoryRatio:      0.3,
		MaxDays:         60,
		Clean:           true,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users         int
	Friendships   int
	Requests      int
	Posts         int
	Likes         int
	Comments      int
	Stories       int
	Notifications int
}

// Seeder populates the database through a Factory.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	summary Summary
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	f, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{db: db, opts: opts, factory: f}, nil
}

// Run seeds a full social graph: users, friendships, pending requests,
// posts with likes and comments, live stories and the notifications those
// actions would have produced.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	s.factory.db = s.db.WithContext(ctx)
	middleware.Logger.InfoContext(ctx, "seeding database", "users", s.opts.Users, "posts_per_user", s.opts.PostsPerUser)

	if s.opts.Clean {
		if err := ClearAll(ctx, s.db); err != nil {
			return nil, err
		}
	}

	users, err := s.seedUsers()
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	friends, err := s.seedFriendships(users)
	if err != nil {
		return nil, fmt.Errorf("seed friendships: %w", err)
	}
	if err := s.seedRequests(users, friends); err != nil {
		return nil, fmt.Errorf("seed friend requests: %w", err)
	}
	if err := s.seedPosts(users, friends); err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}
	if err := s.seedStories(users); err != nil {
		return nil, fmt.Errorf("seed stories: %w", err)
	}

	sum := s.summary
	middleware.Logger.InfoContext(ctx, "seeding completed",
		"users", sum.Users,
		"friendships", sum.Friendships,
		"requests", sum.Requests,
		"posts", sum.Posts,
		"likes", sum.Likes,
		"comments", sum.Comments,
		"stories", sum.Stories,
		"notifications", sum.Notifications,
	)
	return &sum, nil
}

// ClearAll deletes every row of every persistent model, children first.
func ClearAll(ctx context.Context, db *gorm.DB) error {
	all := database.PersistentModels()
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(all) - 1; i >= 0; i-- {
		if err := tx.Unscoped().Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", all[i], err)
		}
	}
	return nil
}

func (s *Seeder) seedUsers() ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	s.summary.Users = len(users)
	return users, nil
}

// friendGraph maps a user ID to the set of its friends' IDs.
type friendGraph map[uint]map[uint]bool

func (g friendGraph) add(a, b uint) {
	for _, p := range [][2]uint{{a, b}, {b, a}} {
		if g[p[0]] == nil {
			g[p[0]] = map[uint]bool{}
		}
		g[p[0]][p[1]] = true
	}
}

func (g friendGraph) linked(a, b uint) bool {
	return g[a][b]
}

func (s *Seeder) seedFriendships(users []*models.User) (friendGraph, error) {
	graph := friendGraph{}
	if len(users) < 2 {
		return graph, nil
	}
	rng := s.factory.rng
	for _, u := range users {
		for attempts := 0; len(graph[u.ID]) < s.opts.FriendsPerUser && attempts < s.opts.FriendsPerUser*3; attempts++ {
			other := users[rng.Intn(len(users))]
			if other.ID == u.ID || graph.linked(u.ID, other.ID) {
				continue
			}
			if err := s.factory.CreateFriendship(u, other); err != nil {
				return nil, err
			}
			graph.add(u.ID, other.ID)
			s.summary.Friendships++
			if err := s.notify(u.ID, other.ID, models.NotificationRequest, nil, nil, ""); err != nil {
				return nil, err
			}
			if err := s.notify(other.ID, u.ID, models.NotificationFollow, nil, nil, "accepted your friend request"); err != nil {
				return nil, err
			}
		}
	}
	return graph, nil
}

func (s *Seeder) seedRequests(users []*models.User, friends friendGraph) error {
	if len(users) < 2 {
		return nil
	}
	rng := s.factory.rng
	pending := map[[2]uint]bool{}
	for attempts := 0; s.summary.Requests < s.opts.PendingRequests && attempts < s.opts.PendingRequests*5; attempts++ {
		sender := users[rng.Intn(len(users))]
		receiver := users[rng.Intn(len(users))]
		low, high := models.CanonicalPair(sender.ID, receiver.ID)
		if sender.ID == receiver.ID || friends.linked(sender.ID, receiver.ID) || pending[[2]uint{low, high}] {
			continue
		}
		if _, err := s.factory.CreateFriendRequest(sender, receiver); err != nil {
			return err
		}
		pending[[2]uint{low, high}] = true
		s.summary.Requests++
		if err := s.notify(receiver.ID, sender.ID, models.NotificationRequest, nil, nil, ""); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedPosts(users []*models.User, friends friendGraph) error {
	byID := make(map[uint]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	rng := s.factory.rng

	for _, author := range users {
		n := 0
		if s.opts.PostsPerUser > 0 {
			n = rng.Intn(s.opts.PostsPerUser + 1)
		}
		for i := 0; i < n; i++ {
			post, err := s.factory.CreatePost(author)
			if err != nil {
				return err
			}
			s.summary.Posts++

			for friendID := range friends[author.ID] {
				friend := byID[friendID]
				if rng.Intn(2) == 0 {
					if err := s.factory.CreateLike(friend, post); err != nil {
						return err
					}
					s.summary.Likes++
					if err := s.notify(author.ID, friend.ID, models.NotificationLike, &post.ID, nil, ""); err != nil {
						return err
					}
				}
			}

			if err := s.seedComments(post, author, friends, byID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) seedComments(post *models.Post, author *models.User, friends friendGraph, byID map[uint]*models.User) error {
	if s.opts.MaxComments <= 0 || len(friends[author.ID]) == 0 {
		return nil
	}
	rng := s.factory.rng
	commenters := make([]*models.User, 0, len(friends[author.ID]))
	for id := range friends[author.ID] {
		commenters = append(commenters, byID[id])
	}

	for i := rng.Intn(s.opts.MaxComments + 1); i > 0; i-- {
		commenter := commenters[rng.Intn(len(commenters))]
		comment, err := s.factory.CreateComment(commenter, post)
		if err != nil {
			return err
		}
		s.summary.Comments++
		if err := s.notify(author.ID, commenter.ID, models.NotificationComment, &post.ID, &comment.ID, ""); err != nil {
			return err
		}
		if rng.Intn(3) == 0 {
			if err := s.factory.CreateCommentLike(author, comment); err != nil {
				return err
			}
			if err := s.notify(commenter.ID, author.ID, models.NotificationLike, &post.ID, &comment.ID, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) seedStories(users []*models.User) error {
	rng := s.factory.rng
	for _, u := range users {
		if rng.Float64() >= s.opts.StoryRatio {
			continue
		}
		if _, err := s.factory.CreateStory(u); err != nil {
			return err
		}
		s.summary.Stories++
	}
	return nil
}

func (s *Seeder) notify(recipientID, senderID uint, typ models.NotificationType, postID, commentID *uint, text string) error {
	if recipientID == senderID {
		return nil
	}
	n := &models.Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        typ,
		PostID:      postID,
		CommentID:   commentID,
		IsRead:      s.factory.rng.Intn(2) == 0,
		Text:        text,
	}
	if err := s.factory.CreateNotification(n); err != nil {
		return err
	}
	s.summary.Notifications++
	return nil
}
