// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"artenis/internal/models"
	"artenis/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Tattoo!Ink2024"

var (
	cities = []string{"Madrid", "Barcelona", "Valencia", "Sevilla", "Bilbao", "Málaga", "Zaragoza", "Granada"}

	studioSuffixes = []string{"Ink", "Tattoo Studio", "Tinta", "Needle Club", "Black Rose", "Estudio"}

	postTags = []string{"flash", "fineline", "cover", "healed", "wip", "custom", "minimal", "color", "sleeve", "lettering"}

	techniques = []string{"single needle", "whip shading", "dotwork", "stippling", "packing"}
)

// Options tunes how factories build entities.
type Options struct {
	// DryRun assigns synthetic IDs instead of writing to the database.
	DryRun bool
	// SkipBcrypt stores a cheap hash; login against seeded accounts then fails.
	SkipBcrypt bool
	// MaxDays bounds how far back created_at timestamps are spread.
	MaxDays int
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	hash string
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	return &Factory{
		db:   db,
		opts: opts,
		// #nosec G404: acceptable for seeding
		rng:    rand.New(rand.NewSource(seed)),
		nextID: 1000,
	}
}

func (f *Factory) passwordHash() string {
	if f.hash != "" {
		return f.hash
	}
	if f.opts.SkipBcrypt {
		f.hash = "seeded-" + DefaultPassword
		return f.hash
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("bcrypt failed, falling back to plain seed hash: %v", err)
		f.hash = "seeded-" + DefaultPassword
		return f.hash
	}
	f.hash = string(hashed)
	return f.hash
}

// pastTime returns a moment spread over the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

func (f *Factory) pick(from []string) string {
	return from[f.rng.Intn(len(from))]
}

// pickN returns up to n distinct entries of from.
func (f *Factory) pickN(from []string, n int) []string {
	idx := f.rng.Perm(len(from))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, 0, n)
	for _, i := range idx[:n] {
		out = append(out, from[i])
	}
	return out
}

func (f *Factory) assignID(kind string, id *uint) {
	f.nextID++
	*id = f.nextID
	log.Printf("[dry-run] %s: id=%d", kind, f.nextID)
}

// BuildUser constructs a sample user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, gofakeit.Number(10, 9999)))
	username = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return -1
	}, username)
	if len(username) > 30 {
		username = strings.TrimRight(username[:30], "_")
	}

	user := &models.User{
		Username:             username,
		Email:                username + "@example.com",
		Password:             f.passwordHash(),
		FirstName:            first,
		LastName:             last,
		Bio:                  gofakeit.Sentence(10),
		Avatar:               fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		Role:                 models.RoleUser,
		Status:               models.UserStatusActive,
		EmailVerified:        gofakeit.Bool(),
		NotificationsEnabled: true,
		Interests:            f.pickN(validation.Styles, 1+f.rng.Intn(3)),
	}
	user.CreatedAt = f.pastTime()
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if f.opts.DryRun {
		f.assignID("CreateUser", &user.ID)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateArtist persists a user with the artist role and a verified studio
// profile that takes bookings.
func (f *Factory) CreateArtist(overrides ...func(*models.ArtistProfile)) (*models.User, *models.ArtistProfile, error) {
	user, err := f.CreateUser(func(u *models.User) {
		u.Role = models.RoleArtist
		u.EmailVerified = true
	})
	if err != nil {
		return nil, nil, err
	}

	rate := float64(60 + f.rng.Intn(140))
	profile := &models.ArtistProfile{
		UserID:         user.ID,
		BusinessName:   fmt.Sprintf("%s %s", user.LastName, f.pick(studioSuffixes)),
		Bio:            gofakeit.Paragraph(1, 2, 12, " "),
		Styles:         f.pickN(validation.Styles, 1+f.rng.Intn(3)),
		City:           strings.ToLower(f.pick(cities)),
		Status:         models.ArtistStatusVerified,
		Rating:         float64(30+f.rng.Intn(21)) / 10,
		ReviewsCount:   int64(f.rng.Intn(120)),
		BookingEnabled: true,
		HourlyRate:     &rate,
	}
	for _, override := range overrides {
		override(profile)
	}

	if f.opts.DryRun {
		f.assignID("CreateArtist", &profile.ID)
		return user, profile, nil
	}
	if err := f.db.Create(profile).Error; err != nil {
		return nil, nil, err
	}
	return user, profile, nil
}

// BuildPost constructs a published post for user without persisting it.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	media := make([]string, 1+f.rng.Intn(3))
	for i := range media {
		media[i] = fmt.Sprintf("https://picsum.photos/seed/%s/1080/1080.webp", gofakeit.UUID())
	}
	city := f.pick(cities)
	lat, lng := gofakeit.Latitude(), gofakeit.Longitude()
	duration := float64(1 + f.rng.Intn(8))

	post := &models.Post{
		UserID:      user.ID,
		Title:       strings.TrimSuffix(gofakeit.Sentence(4), "."),
		Description: gofakeit.Paragraph(1, 2, 10, " "),
		Tags:        f.pickN(postTags, 1+f.rng.Intn(3)),
		Styles:      f.pickN(validation.Styles, 1+f.rng.Intn(2)),
		MediaURLs:   media,
		Status:      models.PostStatusPublished,
		Location:    &models.Location{Name: gofakeit.Company(), City: city, Country: "España", Latitude: &lat, Longitude: &lng},
		TattooDetails: &models.TattooDetails{
			BodyPart:  f.pick(validation.BodyParts),
			Size:      f.pick(validation.Sizes),
			Duration:  &duration,
			Technique: f.pick(techniques),
		},
		ViewsCount:    int64(f.rng.Intn(5000)),
		AllowComments: true,
		AllowSharing:  true,
	}
	post.Type = models.DeterminePostType(post.MediaURLs)
	post.CreatedAt = f.pastTime()
	for _, override := range overrides {
		override(post)
	}
	post.SyncLocation()
	return post
}

// CreatePost constructs and persists a sample post for user.
func (f *Factory) CreatePost(user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, overrides...)
	if f.opts.DryRun {
		f.assignID("CreatePost", &post.ID)
		return post, nil
	}
	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreatePostsBatch persists multiple posts in a single DB call.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	if len(posts) == 0 {
		return nil
	}
	return f.db.Create(&posts).Error
}

// CreateComment persists a comment by user on post and bumps the counter.
func (f *Factory) CreateComment(user *models.User, post *models.Post) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:  post.ID,
		UserID:  user.ID,
		Content: gofakeit.Sentence(8),
	}
	if f.opts.DryRun {
		f.assignID("CreateComment", &comment.ID)
		post.CommentsCount++
		return comment, nil
	}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	post.CommentsCount++
	return comment, nil
}

// CreateLike persists a like from user on post and bumps the counter.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		post.LikesCount++
		return nil
	}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.Like{UserID: user.ID, PostID: post.ID}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error
	})
	if err == nil {
		post.LikesCount++
	}
	return err
}

// CreateFollow persists a follow edge. Self edges are ignored.
func (f *Factory) CreateFollow(follower, following *models.User) error {
	if follower.ID == following.ID || f.opts.DryRun {
		return nil
	}
	return f.db.Create(&models.Follow{FollowerID: follower.ID, FollowingID: following.ID}).Error
}

// CreateAppointment books client with artist at a random slot in the next
// month. Past-dated seed data is marked completed.
func (f *Factory) CreateAppointment(client, artist *models.User, status models.AppointmentStatus) (*models.Appointment, error) {
	date := time.Now().Add(time.Duration(1+f.rng.Intn(30)) * 24 * time.Hour).Truncate(time.Hour)
	if status == models.AppointmentCompleted {
		date = f.pastTime().Truncate(time.Hour)
	}
	appt := &models.Appointment{
		ClientID:        client.ID,
		ArtistID:        artist.ID,
		Date:            date,
		DurationMinutes: 60 * (1 + f.rng.Intn(4)),
		Description:     gofakeit.Sentence(8),
		Status:          status,
	}
	if f.opts.DryRun {
		f.assignID("CreateAppointment", &appt.ID)
		return appt, nil
	}
	if err := f.db.Create(appt).Error; err != nil {
		return nil, err
	}
	return appt, nil
}

// CreateQuote persists a quote request from client to artist. Sent and
// settled quotes carry the artist's price.
func (f *Factory) CreateQuote(client, artist *models.User, status models.QuoteStatus) (*models.Quote, error) {
	estimate := float64(50 * (1 + f.rng.Intn(10)))
	quote := &models.Quote{
		ClientID:       client.ID,
		ArtistID:       artist.ID,
		Description:    gofakeit.Sentence(12),
		Styles:         f.pickN(validation.Styles, 1),
		BodyPart:       f.pick(validation.BodyParts),
		Size:           f.pick(validation.Sizes),
		EstimatedPrice: &estimate,
		Status:         status,
	}
	if status != models.QuotePending {
		price := estimate * (0.8 + f.rng.Float64()*0.6)
		quote.Price = &price
		quote.ArtistNotes = gofakeit.Sentence(6)
	}
	if f.opts.DryRun {
		f.assignID("CreateQuote", &quote.ID)
		return quote, nil
	}
	if err := f.db.Create(quote).Error; err != nil {
		return nil, err
	}
	return quote, nil
}
