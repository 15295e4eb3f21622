// Package reputation derives a user's score, level and badges from activity
// totals. Nothing here is persisted.
package reputation

import (
	"math"
	"time"

	"artenis/internal/models"
)

const day = 24 * time.Hour

// Stats are the activity totals a snapshot is computed from.
type Stats struct {
	Posts          int64
	Likes          int64
	Comments       int64
	Followers      int64
	EmailVerified  bool
	PhoneVerified  bool
	PremiumActive  bool
	IsArtist       bool
	JoinedAt       time.Time
	LastActivityAt time.Time
}

// Snapshot is the derived reputation of a user.
type Snapshot struct {
	UserID      uint     `json:"user_id"`
	Score       int64    `json:"score"`
	Level       int      `json:"level"`
	LevelName   string   `json:"level_name"`
	NextLevelAt *int64   `json:"next_level_at"`
	Progress    float64  `json:"level_progress"`
	Badges      []string `json:"badges"`
}

type cappedTerm struct {
	value func(*Stats) int64
	mult  int64
	cap   int64
}

var baseTerms = []cappedTerm{
	{func(s *Stats) int64 { return s.Posts }, 5, 500},
	{func(s *Stats) int64 { return s.Likes }, 1, 1000},
	{func(s *Stats) int64 { return s.Comments }, 2, 300},
	{func(s *Stats) int64 { return s.Followers }, 3, 2000},
}

type flagBonus struct {
	applies func(*Stats) bool
	points  int64
}

var flagBonuses = []flagBonus{
	{func(s *Stats) bool { return s.EmailVerified }, 50},
	{func(s *Stats) bool { return s.PhoneVerified }, 30},
	{func(s *Stats) bool { return s.PremiumActive }, 100},
	{func(s *Stats) bool { return s.IsArtist }, 200},
}

const (
	inactivityGraceDays  = 30
	inactivityPointsADay = 2
)

// Level is a named score range starting at Min.
type Level struct {
	Number int
	Name   string
	Min    int64
}

// Levels is ordered by Min ascending.
var Levels = []Level{
	{1, "Novato", 0},
	{2, "Aprendiz", 100},
	{3, "Intermedio", 300},
	{4, "Avanzado", 600},
	{5, "Experto", 1000},
	{6, "Maestro", 2000},
	{7, "Leyenda", 4000},
	{8, "Artenis Pro", 8000},
}

type badgeRule struct {
	name    string
	applies func(s *Stats, now time.Time) bool
}

var badgeRules = []badgeRule{
	{"email-verified", func(s *Stats, _ time.Time) bool { return s.EmailVerified }},
	{"phone-verified", func(s *Stats, _ time.Time) bool { return s.PhoneVerified }},
	{"prolific-creator", func(s *Stats, _ time.Time) bool { return s.Posts >= 100 }},
	{"influencer", func(s *Stats, _ time.Time) bool { return s.Followers >= 1000 }},
	{"loved-creator", func(s *Stats, _ time.Time) bool { return s.Likes >= 10000 }},
	{"veteran", func(s *Stats, now time.Time) bool { return daysSince(s.JoinedAt, now) >= 365 }},
	{"established", func(s *Stats, now time.Time) bool { return daysSince(s.JoinedAt, now) >= 30 }},
	{"premium", func(s *Stats, _ time.Time) bool { return s.PremiumActive }},
	{"artist", func(s *Stats, _ time.Time) bool { return s.IsArtist }},
}

func daysSince(t, now time.Time) int64 {
	if t.IsZero() || now.Before(t) {
		return 0
	}
	return int64(now.Sub(t) / day)
}

// Calculate computes the snapshot for userID. A nil stats means the user
// does not exist.
func Calculate(userID uint, stats *Stats, now time.Time) (*Snapshot, error) {
	if stats == nil {
		return nil, models.NewNotFoundError("User", userID)
	}

	var score int64
	for _, term := range baseTerms {
		score += min(term.mult*term.value(stats), term.cap)
	}
	for _, b := range flagBonuses {
		if b.applies(stats) {
			score += b.points
		}
	}

	if idle := daysSince(stats.LastActivityAt, now); idle > inactivityGraceDays {
		score -= (idle - inactivityGraceDays) * inactivityPointsADay
	}
	score = max(score, 0)

	level, next := levelFor(score)
	snap := &Snapshot{
		UserID:      userID,
		Score:       score,
		Level:       level.Number,
		LevelName:   level.Name,
		NextLevelAt: next,
		Badges:      []string{},
	}
	snap.Progress = snap.levelProgress()
	for _, rule := range badgeRules {
		if rule.applies(stats, now) {
			snap.Badges = append(snap.Badges, rule.name)
		}
	}
	return snap, nil
}

func levelFor(score int64) (Level, *int64) {
	idx := 0
	for i, l := range Levels {
		if score >= l.Min {
			idx = i
		}
	}
	if idx == len(Levels)-1 {
		return Levels[idx], nil
	}
	next := Levels[idx+1].Min
	return Levels[idx], &next
}

// Artist upgrade requirements.
const (
	MinArtistPosts     = 5
	MinArtistFollowers = 10
	MinArtistAgeDays   = 30
)

// ArtistEligibility lists the unmet requirements for the artist role. An
// empty result means the user is eligible.
func ArtistEligibility(stats *Stats, profileComplete bool, now time.Time) []string {
	missing := []string{}
	if stats == nil {
		return append(missing, "user not found")
	}
	if !stats.EmailVerified {
		missing = append(missing, "email must be verified")
	}
	if !profileComplete {
		missing = append(missing, "profile must be complete")
	}
	if stats.Posts < MinArtistPosts {
		missing = append(missing, "at least 5 posts required")
	}
	if stats.Followers < MinArtistFollowers {
		missing = append(missing, "at least 10 followers required")
	}
	if daysSince(stats.JoinedAt, now) < MinArtistAgeDays {
		missing = append(missing, "account must be at least 30 days old")
	}
	return missing
}

// FollowLimit is the maximum number of accounts a user may follow.
func FollowLimit(premium bool) int64 {
	if premium {
		return 5000
	}
	return 1000
}

// levelProgress is the fraction of the way from the current level to the
// next, in [0, 1]. It is 1 at the top level.
func (s *Snapshot) levelProgress() float64 {
	if s.NextLevelAt == nil {
		return 1
	}
	current := Levels[s.Level-1].Min
	span := float64(*s.NextLevelAt - current)
	return math.Min(1, float64(s.Score-current)/span)
}
