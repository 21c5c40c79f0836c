// Command seed populates the database with demo users, friendships, posts
// and stories.
package main

import (
	"context"
	"flag"
	"log"

	"circle/internal/bootstrap"
	"circle/internal/config"
	"circle/internal/seed"
)

func main() {
	def := seed.DefaultOptions()

	// Parse command line flags
	users := flag.Int("users", def.Users, "Number of users to create")
	friends := flag.Int("friends", def.FriendsPerUser, "Target friends per user")
	requests := flag.Int("requests", def.PendingRequests, "Number of pending friend requests")
	posts := flag.Int("posts", def.PostsPerUser, "Maximum posts per user")
	comments := flag.Int("comments", def.MaxComments, "Maximum comments per post")
	stories := flag.Float64("stories", def.StoryRatio, "Share of users with a live story (0-1)")
	days := flag.Int("days", def.MaxDays, "Spread post timestamps over this many days")
	clean := flag.Bool("clean", def.Clean, "Delete existing data before seeding")
	fast := flag.Bool("fast", false, "Hash the shared password at minimum bcrypt cost")
	randSeed := flag.Int64("seed", 0, "Random seed for a reproducible run (0 = clock)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipStorage: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	s, err := seed.NewSeeder(rt.DB, seed.Options{
		Users:           *users,
		FriendsPerUser:  *friends,
		PendingRequests: *requests,
		PostsPerUser:    *posts,
		MaxComments:     *comments,
		StoryRatio:      *stories,
		MaxDays:         *days,
		SkipBcrypt:      *fast,
		Clean:           *clean,
		RandSeed:        *randSeed,
	})
	if err != nil {
		log.Fatalf("Failed to create seeder: %v", err)
	}

	sum, err := s.Run(ctx)
	if err != nil {
		rt.Close()
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d friendships, %d pending requests, %d posts, %d stories",
		sum.Users, sum.Friendships, sum.Requests, sum.Posts, sum.Stories)
	log.Printf("All seeded users sign in with the password %q", seed.DefaultPassword)
}
