package service

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"artenis/internal/cache"
	"artenis/internal/middleware"
	"artenis/internal/models"
	"artenis/internal/moderation"
	"artenis/internal/notifications"
	"artenis/internal/observability"
	"artenis/internal/ranking"
	"artenis/internal/repository"
	"artenis/internal/validation"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
)

const (
	FlagRankedFeed            = "ranked_feed"
	DefaultFeedCandidateLimit = 200

	maxTitleLen       = 200
	maxDescriptionLen = 2000
	maxMediaPerPost   = 10
)

// FeedMode tells how a feed page was ordered.
type FeedMode string

const (
	FeedModeRanked        FeedMode = "ranked"
	FeedModeChronological FeedMode = "chronological"
)

// FeatureFlags is satisfied by *featureflags.Manager.
type FeatureFlags interface {
	Enabled(name string, userID uint) bool
}

// MediaRemover deletes stored media objects. *MediaService satisfies it.
type MediaRemover interface {
	DeleteURLs(ctx context.Context, urls []string)
}

type PostService struct {
	posts          repository.PostRepository
	users          repository.UserRepository
	scorer         *ranking.Scorer
	detector       *moderation.Detector
	flags          FeatureFlags
	media          MediaRemover
	notifier       Notifier
	candidateLimit int
	now            clock
}

// PostServiceDeps groups the collaborators of PostService.
type PostServiceDeps struct {
	Posts          repository.PostRepository
	Users          repository.UserRepository
	Scorer         *ranking.Scorer
	Detector       *moderation.Detector
	Flags          FeatureFlags
	Media          MediaRemover
	Notifier       Notifier
	CandidateLimit int
}

type FeedInput struct {
	UserID    uint
	Styles    []string
	City      string
	Interests []string
	Pagination
}

// FeedPage is one page of the feed.
type FeedPage struct {
	PageResult[*models.Post]
	Mode FeedMode `json:"mode"`
}

type CreatePostInput struct {
	UserID        uint
	Title         string
	Description   string
	Tags          []string
	Styles        []string
	MediaURLs     []string
	Location      *models.Location
	TattooDetails *models.TattooDetails
	AllowComments *bool
	AllowSharing  *bool
	Draft         bool
	ScheduledAt   *time.Time
}

// UpdatePostInput holds optional changes; nil leaves a field as is.
type UpdatePostInput struct {
	UserID        uint
	PostID        uint
	Title         *string
	Description   *string
	Tags          []string
	Styles        []string
	MediaURLs     []string
	Location      *models.Location
	TattooDetails *models.TattooDetails
	AllowComments *bool
	AllowSharing  *bool
}

func NewPostService(deps PostServiceDeps) *PostService {
	limit := deps.CandidateLimit
	if limit <= 0 {
		limit = DefaultFeedCandidateLimit
	}
	scorer := deps.Scorer
	if scorer == nil {
		scorer = ranking.NewScorer(ranking.DefaultWeights())
	}
	detector := deps.Detector
	if detector == nil {
		detector = moderation.NewDetector(nil)
	}
	return &PostService{
		posts:          deps.Posts,
		users:          deps.Users,
		scorer:         scorer,
		detector:       detector,
		flags:          deps.Flags,
		media:          deps.Media,
		notifier:       deps.Notifier,
		candidateLimit: limit,
		now:            utcNow,
	}
}

// Feed builds one page of the viewer's feed. Without explicit interests the
// viewer's profile interests are used for ranking.
func (s *PostService) Feed(ctx context.Context, in FeedInput) (*FeedPage, error) {
	in.Pagination = in.Pagination.Normalize()
	styles := validation.NormalizeStyles(in.Styles)
	city := strings.ToLower(strings.TrimSpace(in.City))
	interests := validation.NormalizeTags(in.Interests)
	if len(interests) == 0 && in.UserID != 0 {
		user, err := s.users.GetByID(ctx, in.UserID)
		if err != nil {
			return nil, err
		}
		interests = validation.NormalizeTags(user.Interests)
	}

	mode := FeedModeChronological
	if s.flags != nil && s.flags.Enabled(FlagRankedFeed, in.UserID) {
		mode = FeedModeRanked
	}

	key := cache.FeedKey(in.UserID, in.Page, feedFilterHash(mode, in.Limit, styles, city, interests))
	var cached FeedPage
	found, err := cache.GetJSON(ctx, key, &cached)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "feed cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		observability.FeedCacheResults.WithLabelValues("hit").Inc()
		return &cached, nil
	}
	observability.FeedCacheResults.WithLabelValues("miss").Inc()

	now := s.now()
	candidates, err := s.posts.FeedCandidates(ctx, repository.FeedFilter{
		Styles: styles,
		City:   city,
		Now:    now,
		Limit:  s.candidateLimit,
	})
	if err != nil {
		return nil, err
	}

	ordered, err := s.order(ctx, mode, candidates, interests, now)
	if err != nil {
		return nil, err
	}

	start := min((in.Page-1)*in.Limit, len(ordered))
	end := min(start+in.Limit, len(ordered))
	items := ordered[start:end]
	if in.UserID != 0 {
		if err := s.posts.MarkInteractions(ctx, in.UserID, items); err != nil {
			return nil, err
		}
	}

	page := &FeedPage{
		PageResult: newPageResult(items, int64(len(ordered)), in.Pagination),
		Mode:       mode,
	}
	if err := cache.SetJSON(ctx, key, page, cache.FeedTTL); err != nil {
		middleware.Logger.WarnContext(ctx, "feed cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return page, nil
}

func (s *PostService) order(ctx context.Context, mode FeedMode, candidates []*models.Post, interests []string, now time.Time) ([]*models.Post, error) {
	start := time.Now()
	defer func() {
		observability.FeedRankingDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	}()

	if mode == FeedModeChronological {
		out := make([]*models.Post, 0, len(candidates))
		for _, p := range candidates {
			if p != nil && p.Status == models.PostStatusPublished {
				out = append(out, p)
			}
		}
		return out, nil
	}

	ctx, span := observability.StartSpan(ctx, "feed.rank",
		attribute.Int("feed.candidates", len(candidates)),
		attribute.Int("feed.interests", len(interests)))
	defer span.End()

	scored, err := s.scorer.Rank(ctx, candidates, interests, now)
	if err != nil {
		observability.RecordError(span, err)
		return nil, models.NewInternalError(err)
	}
	out := make([]*models.Post, len(scored))
	for i, sp := range scored {
		out[i] = sp.Post
	}
	return out, nil
}

// feedFilterHash fingerprints everything besides viewer and page that
// changes a feed page.
func feedFilterHash(mode FeedMode, limit int, styles []string, city string, interests []string) string {
	d := xxhash.New()
	_, _ = d.WriteString(string(mode))
	_, _ = d.WriteString("|" + strconv.Itoa(limit))
	_, _ = d.WriteString("|" + strings.Join(styles, ","))
	_, _ = d.WriteString("|" + city)
	_, _ = d.WriteString("|" + strings.Join(interests, ","))
	return strconv.FormatUint(d.Sum64(), 16)
}

func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !user.CanCreatePosts() {
		return nil, models.NewForbiddenError("You cannot create posts")
	}

	post := &models.Post{
		UserID:        in.UserID,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		Tags:          validation.NormalizeTags(in.Tags),
		Styles:        validation.NormalizeStyles(in.Styles),
		MediaURLs:     in.MediaURLs,
		Location:      in.Location,
		TattooDetails: in.TattooDetails,
		Status:        models.PostStatusPublished,
		AllowComments: boolOr(in.AllowComments, true),
		AllowSharing:  boolOr(in.AllowSharing, true),
		ScheduledAt:   in.ScheduledAt,
	}
	if post.MediaURLs == nil {
		post.MediaURLs = []string{}
	}
	if err := validatePostContent(post); err != nil {
		return nil, err
	}
	post.Type = models.DeterminePostType(post.MediaURLs)
	if !post.CanPublish() {
		return nil, models.NewValidationError("A post needs media or a description")
	}
	if in.Draft {
		post.Status = models.PostStatusDraft
	}
	post.SyncLocation()
	s.flagForReview(ctx, post)

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	post.User = user
	return post, nil
}

// Get hides deleted posts, and other users' unpublished or not yet
// scheduled posts. Each successful read counts as a view.
func (s *PostService) Get(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !s.visibleTo(post, viewerID) {
		return nil, models.NewNotFoundError("Post", postID)
	}

	if err := s.posts.IncrementViews(ctx, postID); err != nil {
		middleware.Logger.WarnContext(ctx, "view count failed",
			slog.Uint64("post_id", uint64(postID)),
			slog.String("error", err.Error()))
	} else {
		post.ViewsCount++
	}
	if viewerID != 0 {
		if err := s.posts.MarkInteractions(ctx, viewerID, []*models.Post{post}); err != nil {
			return nil, err
		}
	}
	return post, nil
}

func (s *PostService) visibleTo(post *models.Post, viewerID uint) bool {
	if post.Status == models.PostStatusDeleted {
		return false
	}
	if post.UserID == viewerID {
		return true
	}
	if post.Status != models.PostStatusPublished {
		return false
	}
	return post.ScheduledAt == nil || !post.ScheduledAt.After(s.now())
}

// ListByUser shows owners every non-deleted post of theirs and everyone
// else only published ones.
func (s *PostService) ListByUser(ctx context.Context, userID, viewerID uint, p Pagination) (PageResult[*models.Post], error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return PageResult[*models.Post]{}, err
	}
	var statuses []models.PostStatus
	if userID == viewerID {
		statuses = []models.PostStatus{
			models.PostStatusDraft, models.PostStatusPublished,
			models.PostStatusArchived, models.PostStatusReported,
		}
	}
	posts, total, err := s.posts.ListByUser(ctx, userID, statuses, p.repoPage())
	if err != nil {
		return PageResult[*models.Post]{}, err
	}
	if viewerID != 0 {
		if err := s.posts.MarkInteractions(ctx, viewerID, posts); err != nil {
			return PageResult[*models.Post]{}, err
		}
	}
	return newPageResult(posts, total, p), nil
}

func (s *PostService) Saved(ctx context.Context, userID uint, p Pagination) (PageResult[*models.Post], error) {
	posts, total, err := s.posts.ListSaved(ctx, userID, p.repoPage())
	if err != nil {
		return PageResult[*models.Post]{}, err
	}
	if err := s.posts.MarkInteractions(ctx, userID, posts); err != nil {
		return PageResult[*models.Post]{}, err
	}
	return newPageResult(posts, total, p), nil
}

// Update applies a partial owner edit; content is re-normalized and
// re-validated.
func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusDeleted {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("Only the author can edit this post")
	}

	if in.Title != nil {
		post.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		post.Description = strings.TrimSpace(*in.Description)
	}
	if in.Tags != nil {
		post.Tags = validation.NormalizeTags(in.Tags)
	}
	if in.Styles != nil {
		post.Styles = validation.NormalizeStyles(in.Styles)
	}
	if in.MediaURLs != nil {
		post.MediaURLs = in.MediaURLs
		post.Type = models.DeterminePostType(post.MediaURLs)
	}
	if in.Location != nil {
		post.Location = in.Location
	}
	if in.TattooDetails != nil {
		post.TattooDetails = in.TattooDetails
	}
	if in.AllowComments != nil {
		post.AllowComments = *in.AllowComments
	}
	if in.AllowSharing != nil {
		post.AllowSharing = *in.AllowSharing
	}

	if err := validatePostContent(post); err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusPublished && !post.CanPublish() {
		return nil, models.NewValidationError("A post needs media or a description")
	}
	post.SyncLocation()
	s.flagForReview(ctx, post)

	author := post.User
	post.User = nil
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	post.User = author
	return post, nil
}

// ChangeStatus moves a post along the allowed lifecycle. Owners and admins
// may change it.
func (s *PostService) ChangeStatus(ctx context.Context, actorID, postID uint, next models.PostStatus) (*models.Post, error) {
	if !next.Valid() {
		return nil, models.NewValidationError("Unknown post status")
	}
	post, err := s.ownedOrAdmin(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}
	if !post.CanTransitionTo(next) {
		return nil, models.NewValidationError("Cannot change status from " + string(post.Status) + " to " + string(next))
	}
	if next == models.PostStatusPublished && !post.CanPublish() {
		return nil, models.NewValidationError("A post needs media or a description")
	}
	if err := s.posts.UpdateStatus(ctx, postID, next); err != nil {
		return nil, err
	}
	post.Status = next
	return post, nil
}

// Delete soft-deletes the post and removes its media on a best-effort basis.
func (s *PostService) Delete(ctx context.Context, actorID, postID uint) error {
	post, err := s.ownedOrAdmin(ctx, actorID, postID)
	if err != nil {
		return err
	}
	if err := s.posts.UpdateStatus(ctx, postID, models.PostStatusDeleted); err != nil {
		return err
	}
	if s.media != nil && len(post.MediaURLs) > 0 {
		s.media.DeleteURLs(ctx, post.MediaURLs)
	}
	return nil
}

func (s *PostService) ownedOrAdmin(ctx context.Context, actorID, postID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusDeleted {
		return nil, models.NewNotFoundError("Post", postID)
	}
	if post.UserID != actorID {
		if err := requireAdmin(ctx, s.users, actorID); err != nil {
			if models.IsCode(err, models.CodeForbidden) {
				return nil, models.NewForbiddenError("Only the author can change this post")
			}
			return nil, err
		}
	}
	return post, nil
}

// interactable returns a post the user may like, save or share.
func (s *PostService) interactable(ctx context.Context, userID, postID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusPublished {
		return nil, models.NewNotFoundError("Post", postID)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, models.NewForbiddenError("Your account is not active")
	}
	return post, nil
}

// Like is idempotent; the author is notified only for a new like.
func (s *PostService) Like(ctx context.Context, userID, postID uint) error {
	post, err := s.interactable(ctx, userID, postID)
	if err != nil {
		return err
	}
	added, err := s.posts.Like(ctx, userID, postID)
	if err != nil {
		return err
	}
	cache.InvalidateFeeds(ctx, userID)
	if added && post.UserID != userID {
		notify(ctx, s.notifier, post.UserID, notifications.Event{
			Type:    notifications.EventPostLiked,
			ActorID: userID,
			Payload: map[string]any{"post_id": postID},
		})
	}
	return nil
}

func (s *PostService) Unlike(ctx context.Context, userID, postID uint) error {
	if _, err := s.posts.Unlike(ctx, userID, postID); err != nil {
		return err
	}
	cache.InvalidateFeeds(ctx, userID)
	return nil
}

func (s *PostService) Save(ctx context.Context, userID, postID uint) error {
	if _, err := s.interactable(ctx, userID, postID); err != nil {
		return err
	}
	if _, err := s.posts.Save(ctx, userID, postID); err != nil {
		return err
	}
	cache.InvalidateFeeds(ctx, userID)
	return nil
}

func (s *PostService) Unsave(ctx context.Context, userID, postID uint) error {
	if _, err := s.posts.Unsave(ctx, userID, postID); err != nil {
		return err
	}
	cache.InvalidateFeeds(ctx, userID)
	return nil
}

func (s *PostService) Share(ctx context.Context, userID, postID uint) error {
	post, err := s.interactable(ctx, userID, postID)
	if err != nil {
		return err
	}
	if !post.AllowSharing {
		return models.NewForbiddenError("Sharing is disabled for this post")
	}
	return s.posts.IncrementShares(ctx, postID)
}

// Report marks a published post as reported, which removes it from feeds
// until an admin restores it.
func (s *PostService) Report(ctx context.Context, userID, postID uint, reason string) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusDeleted {
		return models.NewNotFoundError("Post", postID)
	}
	if post.UserID == userID {
		return models.NewValidationError("You cannot report your own post")
	}
	if post.Status == models.PostStatusReported {
		return nil
	}
	if !post.CanTransitionTo(models.PostStatusReported) {
		return models.NewValidationError("Only published posts can be reported")
	}
	if err := s.posts.UpdateStatus(ctx, postID, models.PostStatusReported); err != nil {
		return err
	}
	observability.PostsFlaggedForReview.WithLabelValues("report").Inc()
	middleware.Logger.InfoContext(ctx, "post reported",
		slog.Uint64("post_id", uint64(postID)),
		slog.Uint64("reporter_id", uint64(userID)),
		slog.String("reason", reason))
	return nil
}

func (s *PostService) SuggestTags(ctx context.Context, postID, viewerID uint) ([]string, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !s.visibleTo(post, viewerID) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return validation.SuggestTags(post), nil
}

// ModerationQueue lists reported and flagged posts for admins.
func (s *PostService) ModerationQueue(ctx context.Context, actorID uint, p Pagination) (PageResult[*models.Post], error) {
	if err := requireAdmin(ctx, s.users, actorID); err != nil {
		return PageResult[*models.Post]{}, err
	}
	posts, total, err := s.posts.ListForModeration(ctx, p.repoPage())
	if err != nil {
		return PageResult[*models.Post]{}, err
	}
	return newPageResult(posts, total, p), nil
}

// Promote switches promotion on or off. A nil until promotes indefinitely.
func (s *PostService) Promote(ctx context.Context, actorID, postID uint, promoted bool, until *time.Time) (*models.Post, error) {
	if err := requireAdmin(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	if promoted && until != nil && !until.After(s.now()) {
		return nil, models.NewValidationError("Promotion end must be in the future")
	}
	if !promoted {
		until = nil
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusDeleted {
		return nil, models.NewNotFoundError("Post", postID)
	}
	if err := s.posts.SetPromotion(ctx, postID, promoted, until); err != nil {
		return nil, err
	}
	post.IsPromoted = promoted
	post.PromotedUntil = until
	return post, nil
}

func (s *PostService) flagForReview(ctx context.Context, post *models.Post) {
	if post.NeedsReview {
		return
	}
	if !s.detector.NeedsReview(post.Title, post.Description, post.Status) {
		return
	}
	post.NeedsReview = true
	observability.PostsFlaggedForReview.WithLabelValues("keyword").Inc()
	middleware.Logger.InfoContext(ctx, "post flagged for review",
		slog.Uint64("user_id", uint64(post.UserID)),
		slog.String("keyword", s.detector.Match(post.Title+" "+post.Description)))
}

func validatePostContent(post *models.Post) error {
	if utf8.RuneCountInString(post.Title) > maxTitleLen {
		return models.NewValidationError("Title too long (max 200 characters)")
	}
	if utf8.RuneCountInString(post.Description) > maxDescriptionLen {
		return models.NewValidationError("Description too long (max 2000 characters)")
	}
	if len(post.MediaURLs) > maxMediaPerPost {
		return models.NewValidationError("Too many media files (max 10)")
	}
	if slices.Contains(post.MediaURLs, "") {
		return models.NewValidationError("Media URLs cannot be empty")
	}
	if !validation.ValidateTattooDetails(post.TattooDetails) {
		return models.NewValidationError("Invalid tattoo details")
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
