// Package ranking scores posts for the personalized feed.
package ranking

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"artenis/internal/models"

	"golang.org/x/sync/errgroup"
)

// ScoredPost pairs a post with its relevance score.
type ScoredPost struct {
	Post  *models.Post
	Score float64
}

// Scorer computes relevance scores. It holds no mutable state and is safe for
// concurrent use.
type Scorer struct {
	weights Weights
	workers int
}

// NewScorer builds a scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w, workers: runtime.GOMAXPROCS(0)}
}

// Score returns the relevance of post for a viewer with the given interests,
// evaluated at now. The result is never negative.
func (s *Scorer) Score(post *models.Post, interests []string, now time.Time) float64 {
	w := s.weights
	score := w.Like*float64(post.LikesCount) +
		w.Comment*float64(post.CommentsCount) +
		w.Share*float64(post.SharesCount) +
		w.View*float64(post.ViewsCount)

	score += s.recencyBonus(now.Sub(post.CreatedAt))
	score += w.InterestMatch * float64(matchingStyles(post.Styles, interests))

	if utf8.RuneCountInString(post.Description) > w.LongDescriptionChars {
		score += w.LongDescription
	}
	if post.HasMedia() {
		score += w.HasMedia
	}
	if post.IsGallery() {
		score += w.Gallery
	}
	if post.Status == models.PostStatusReported {
		score -= w.ReportedPenalty
	}
	if post.IsActivePromotion(now) {
		score += w.Promoted
	}

	if score < 0 {
		return 0
	}
	return score
}

func (s *Scorer) recencyBonus(age time.Duration) float64 {
	for _, tier := range s.weights.Recency {
		if age <= tier.MaxAge {
			return tier.Bonus
		}
	}
	return 0
}

// matchingStyles counts styles contained, case-insensitively, in at least one
// interest.
func matchingStyles(styles, interests []string) int {
	if len(styles) == 0 || len(interests) == 0 {
		return 0
	}
	lowered := make([]string, len(interests))
	for i, in := range interests {
		lowered[i] = strings.ToLower(in)
	}

	n := 0
	for _, style := range styles {
		st := strings.ToLower(style)
		for _, in := range lowered {
			if strings.Contains(in, st) {
				n++
				break
			}
		}
	}
	return n
}

// Rank scores the candidates in parallel, drops reported and deleted posts
// and orders the rest by score, then newest first, then highest id.
func (s *Scorer) Rank(ctx context.Context, posts []*models.Post, interests []string, now time.Time) ([]ScoredPost, error) {
	scored := make([]ScoredPost, len(posts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range posts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if p == nil {
				return nil
			}
			scored[i] = ScoredPost{Post: p, Score: s.Score(p, interests, now)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := scored[:0]
	for _, sp := range scored {
		if sp.Post == nil {
			continue
		}
		if sp.Post.Status == models.PostStatusReported || sp.Post.Status == models.PostStatusDeleted {
			continue
		}
		out = append(out, sp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Post.CreatedAt.Equal(b.Post.CreatedAt) {
			return a.Post.CreatedAt.After(b.Post.CreatedAt)
		}
		return a.Post.ID > b.Post.ID
	})
	return out, nil
}
