// Command seed fills the database with fake users, posts and engagement.
package main

import (
	"context"
	"flag"
	"log"

	"bloghub/internal/bootstrap"
	"bloghub/internal/config"
	"bloghub/internal/database"
	"bloghub/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	numPosts := flag.Int("posts", defaults.Posts, "Number of posts to create")
	shouldClean := flag.Bool("clean", false, "Delete existing data before seeding")
	preset := flag.String("preset", "", "YAML preset file (overrides the other flags)")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = random)")
	flag.Parse()

	opts := defaults
	if *preset != "" {
		var err error
		if opts, err = seed.LoadPreset(*preset); err != nil {
			log.Fatalf("Preset: %v", err)
		}
		log.Printf("Applying preset %s", *preset)
	} else {
		opts.Users, opts.Posts, opts.Clean, opts.RandSeed = *numUsers, *numPosts, *shouldClean, *randSeed
	}

	if err := bootstrap.LoadEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.ApplySchema(context.Background(), db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	sum, err := seed.NewSeeder(db, opts).Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users (%d approved), %d posts, %d comments, %d likes, %d bookmarks",
		sum.Users, sum.Approved, sum.Posts, sum.Comments, sum.Likes, sum.Bookmarks)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
