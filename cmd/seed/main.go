// Command main runs the database seeder for Artenis.
package main

import (
	"flag"
	"log"

	"artenis/internal/config"
	"artenis/internal/database"
	"artenis/internal/seed"
)

func main() {
	counts := seed.DefaultCounts
	flag.IntVar(&counts.Users, "users", counts.Users, "Number of regular users to create")
	flag.IntVar(&counts.Artists, "artists", counts.Artists, "Number of artists with studio profiles")
	flag.IntVar(&counts.Posts, "posts", counts.Posts, "Number of posts to create")
	flag.IntVar(&counts.MaxLikesPerPost, "max-likes", counts.MaxLikesPerPost, "Upper bound of likes per post")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	maxDays := flag.Int("days", 90, "Spread created_at over this many past days")
	dryRun := flag.Bool("dry-run", false, "Build entities without writing them")
	flag.Parse()

	log.Printf("Target: %d users, %d artists, %d posts, clean=%v", counts.Users, counts.Artists, counts.Posts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{DryRun: *dryRun, MaxDays: *maxDays})

	if *shouldClean && !*dryRun {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(counts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %+v", *sum)
	log.Printf("All seeded accounts use the password: %s", seed.DefaultPassword)
}
