package seed

import (
	"fmt"
	"log"

	"artenis/internal/models"

	"gorm.io/gorm"
)

// Counts sizes a demo data set.
type Counts struct {
	Users   int
	Artists int
	Posts   int
	// Follows, likes and comments are drawn per user/post up to these bounds.
	MaxFollowsPerUser   int
	MaxLikesPerPost     int
	MaxCommentsPerPost  int
	AppointmentsPerUser int
}

// DefaultCounts is a small data set that exercises every feed mode.
var DefaultCounts = Counts{
	Users:               40,
	Artists:             10,
	Posts:               150,
	MaxFollowsPerUser:   8,
	MaxLikesPerPost:     12,
	MaxCommentsPerPost:  4,
	AppointmentsPerUser: 1,
}

// Summary reports what a seeding run created.
type Summary struct {
	Users        int
	Artists      int
	Posts        int
	Follows      int
	Likes        int
	Comments     int
	Appointments int
	Quotes       int
}

// Seeder fills the database with demo data through a Factory.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder returns a Seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts)}
}

// Factory exposes the underlying entity factory.
func (s *Seeder) Factory() *Factory { return s.factory }

// seededTables lists tables in dependency order, children first.
var seededTables = []string{
	"quotes", "appointments", "saved_posts", "likes", "comments",
	"posts", "follows", "artist_profiles", "users",
}

// ClearAll removes every row from the domain tables.
func (s *Seeder) ClearAll() error {
	log.Println("Clearing existing data...")
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec("TRUNCATE TABLE quotes, appointments, saved_posts, likes, comments, posts, follows, artist_profiles, users RESTART IDENTITY CASCADE").Error
	}
	for _, table := range seededTables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Run creates a full demo data set: users, artists with studios, posts with
// engagement, a follow graph and bookings.
func (s *Seeder) Run(c Counts) (*Summary, error) {
	f := s.factory
	sum := &Summary{}

	users := make([]*models.User, 0, c.Users+c.Artists)
	for i := 0; i < c.Users; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	artists := make([]*models.User, 0, c.Artists)
	for i := 0; i < c.Artists; i++ {
		a, _, err := f.CreateArtist()
		if err != nil {
			return sum, fmt.Errorf("create artist: %w", err)
		}
		artists = append(artists, a)
	}
	sum.Artists = len(artists)
	everyone := append(append([]*models.User{}, users...), artists...)
	if len(everyone) == 0 {
		return sum, nil
	}
	log.Printf("created %d users and %d artists", sum.Users, sum.Artists)

	// Artists post most of the content.
	posts := make([]*models.Post, 0, c.Posts)
	for i := 0; i < c.Posts; i++ {
		author := everyone[f.rng.Intn(len(everyone))]
		if len(artists) > 0 && f.rng.Intn(4) != 0 {
			author = artists[f.rng.Intn(len(artists))]
		}
		posts = append(posts, f.BuildPost(author))
	}
	if err := f.CreatePostsBatch(posts); err != nil {
		return sum, fmt.Errorf("create posts: %w", err)
	}
	sum.Posts = len(posts)

	for _, u := range everyone {
		n, err := s.follows(u, everyone, artists, c.MaxFollowsPerUser)
		if err != nil {
			return sum, err
		}
		sum.Follows += n
	}

	for _, p := range posts {
		likes, comments, err := s.engage(p, everyone, c.MaxLikesPerPost, c.MaxCommentsPerPost)
		if err != nil {
			return sum, err
		}
		sum.Likes += likes
		sum.Comments += comments
	}

	if len(artists) > 0 {
		apptStatuses := []models.AppointmentStatus{models.AppointmentPending, models.AppointmentConfirmed, models.AppointmentCompleted}
		quoteStatuses := []models.QuoteStatus{models.QuotePending, models.QuoteSent, models.QuoteAccepted}
		for _, u := range users {
			for i := 0; i < c.AppointmentsPerUser; i++ {
				artist := artists[f.rng.Intn(len(artists))]
				if _, err := f.CreateAppointment(u, artist, apptStatuses[f.rng.Intn(len(apptStatuses))]); err != nil {
					return sum, fmt.Errorf("create appointment: %w", err)
				}
				sum.Appointments++
				if _, err := f.CreateQuote(u, artist, quoteStatuses[f.rng.Intn(len(quoteStatuses))]); err != nil {
					return sum, fmt.Errorf("create quote: %w", err)
				}
				sum.Quotes++
			}
		}
	}

	log.Printf("seeded %d posts, %d follows, %d likes, %d comments, %d appointments, %d quotes",
		sum.Posts, sum.Follows, sum.Likes, sum.Comments, sum.Appointments, sum.Quotes)
	return sum, nil
}

// follows makes u follow up to limit distinct accounts, preferring artists.
func (s *Seeder) follows(u *models.User, everyone, artists []*models.User, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	f := s.factory
	seen := map[uint]bool{u.ID: true}
	created := 0
	want := 1 + f.rng.Intn(limit)
	for attempts := 0; created < want && attempts < limit*3; attempts++ {
		pool := everyone
		if len(artists) > 0 && f.rng.Intn(2) == 0 {
			pool = artists
		}
		target := pool[f.rng.Intn(len(pool))]
		if seen[target.ID] {
			continue
		}
		seen[target.ID] = true
		if err := f.CreateFollow(u, target); err != nil {
			return created, fmt.Errorf("create follow: %w", err)
		}
		created++
	}
	return created, nil
}

func (s *Seeder) engage(p *models.Post, everyone []*models.User, maxLikes, maxComments int) (int, int, error) {
	f := s.factory
	likes, comments := 0, 0
	if maxLikes > 0 {
		for _, i := range f.rng.Perm(len(everyone))[:min(len(everyone), f.rng.Intn(maxLikes+1))] {
			if err := f.CreateLike(everyone[i], p); err != nil {
				return likes, comments, fmt.Errorf("create like: %w", err)
			}
			likes++
		}
	}
	if maxComments > 0 && p.AllowComments {
		for n := f.rng.Intn(maxComments + 1); n > 0; n-- {
			if _, err := f.CreateComment(everyone[f.rng.Intn(len(everyone))], p); err != nil {
				return likes, comments, fmt.Errorf("create comment: %w", err)
			}
			comments++
		}
	}
	return likes, comments, nil
}
