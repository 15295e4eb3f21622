package repository

import (
	"context"
	"strings"
	"time"

	"artenis/internal/cache"
	"artenis/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedFilter narrows the candidate set a feed is ranked from.
type FeedFilter struct {
	Styles []string
	City   string
	Now    time.Time
	Limit  int
}

// PostRepository defines persistence operations for posts and their
// per-user interactions.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	UpdateStatus(ctx context.Context, id uint, status models.PostStatus) error
	SetPromotion(ctx context.Context, id uint, promoted bool, until *time.Time) error
	FeedCandidates(ctx context.Context, filter FeedFilter) ([]*models.Post, error)
	ListByUser(ctx context.Context, userID uint, statuses []models.PostStatus, page Page) ([]*models.Post, int64, error)
	ListForModeration(ctx context.Context, page Page) ([]*models.Post, int64, error)
	ListSaved(ctx context.Context, userID uint, page Page) ([]*models.Post, int64, error)
	Like(ctx context.Context, userID, postID uint) (bool, error)
	Unlike(ctx context.Context, userID, postID uint) (bool, error)
	Save(ctx context.Context, userID, postID uint) (bool, error)
	Unsave(ctx context.Context, userID, postID uint) (bool, error)
	IncrementShares(ctx context.Context, postID uint) error
	IncrementViews(ctx context.Context, postID uint) error
	MarkInteractions(ctx context.Context, userID uint, posts []*models.Post) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID returns any post including deleted ones; visibility is decided by
// the caller.
func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		err := readDB(r.db).WithContext(ctx).Preload("User").First(&post, id).Error
		return mapReadError(err, "Post", id)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// editableColumns are the columns an owner edit may write. Counters,
// status and promotion have their own atomic updates.
var editableColumns = []string{
	"title", "description", "tags", "styles", "media_urls", "type",
	"location", "city", "tattoo_details", "allow_comments", "allow_sharing",
	"needs_review", "updated_at",
}

// Update writes the editable columns of post. post may be a stale cached
// copy, so nothing else is written back.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	res := r.db.WithContext(ctx).
		Model(&models.Post{ID: post.ID}).
		Select(editableColumns).
		Omit(clause.Associations).
		Updates(post)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, id uint, status models.PostStatus) error {
	return r.updateColumns(ctx, id, map[string]any{"status": status})
}

func (r *postRepository) SetPromotion(ctx context.Context, id uint, promoted bool, until *time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{"is_promoted": promoted, "promoted_until": until})
}

func (r *postRepository) updateColumns(ctx context.Context, id uint, values map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

// FeedCandidates returns the newest published posts whose schedule has
// passed. Style and city filters are applied in SQL; styles match if the
// post carries any of them.
func (r *postRepository) FeedCandidates(ctx context.Context, filter FeedFilter) ([]*models.Post, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	q := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("status = ?", models.PostStatusPublished).
		Where("scheduled_at IS NULL OR scheduled_at <= ?", now)

	if len(filter.Styles) > 0 {
		conds := make([]string, 0, len(filter.Styles))
		args := make([]any, 0, len(filter.Styles))
		for _, s := range filter.Styles {
			conds = append(conds, "styles LIKE ?")
			args = append(args, `%"`+s+`"%`)
		}
		q = q.Where(strings.Join(conds, " OR "), args...)
	}
	if city := strings.ToLower(strings.TrimSpace(filter.City)); city != "" {
		q = q.Where("city = ?", city)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var posts []*models.Post
	if err := q.Order("created_at DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ListByUser lists a user's posts restricted to the given statuses, newest
// first. An empty status list means published only.
func (r *postRepository) ListByUser(ctx context.Context, userID uint, statuses []models.PostStatus, page Page) ([]*models.Post, int64, error) {
	if len(statuses) == 0 {
		statuses = []models.PostStatus{models.PostStatusPublished}
	}
	q := readDB(r.db).WithContext(ctx).Model(&models.Post{}).
		Where("user_id = ? AND status IN ?", userID, statuses).
		Session(&gorm.Session{})
	return r.paginate(q, page)
}

// ListForModeration returns reported posts and live posts flagged by the
// keyword detector.
func (r *postRepository) ListForModeration(ctx context.Context, page Page) ([]*models.Post, int64, error) {
	q := readDB(r.db).WithContext(ctx).Model(&models.Post{}).
		Where("status = ? OR (needs_review = ? AND status <> ?)",
			models.PostStatusReported, true, models.PostStatusDeleted).
		Session(&gorm.Session{})
	return r.paginate(q, page)
}

func (r *postRepository) ListSaved(ctx context.Context, userID uint, page Page) ([]*models.Post, int64, error) {
	q := readDB(r.db).WithContext(ctx).Model(&models.Post{}).
		Joins("JOIN saved_posts ON saved_posts.post_id = posts.id").
		Where("saved_posts.user_id = ? AND posts.status = ?", userID, models.PostStatusPublished).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var posts []*models.Post
	err := page.apply(q.Select("posts.*").Preload("User").Order("saved_posts.created_at DESC")).Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *postRepository) paginate(q *gorm.DB, page Page) ([]*models.Post, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var posts []*models.Post
	if err := page.apply(q.Preload("User").Order("created_at DESC").Order("id DESC")).Find(&posts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

// Like records the pair once and bumps the counter in the same transaction.
// It reports false when the user had already liked the post.
func (r *postRepository) Like(ctx context.Context, userID, postID uint) (bool, error) {
	return r.addInteraction(ctx, &models.Like{UserID: userID, PostID: postID}, postID, "likes_count")
}

func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	return r.removeInteraction(ctx, &models.Like{}, userID, postID, "likes_count")
}

func (r *postRepository) Save(ctx context.Context, userID, postID uint) (bool, error) {
	return r.addInteraction(ctx, &models.SavedPost{UserID: userID, PostID: postID}, postID, "saves_count")
}

func (r *postRepository) Unsave(ctx context.Context, userID, postID uint) (bool, error) {
	return r.removeInteraction(ctx, &models.SavedPost{}, userID, postID, "saves_count")
}

func (r *postRepository) addInteraction(ctx context.Context, row any, postID uint, counter string) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn(counter, gorm.Expr(counter+" + 1")).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if created {
		cache.InvalidatePost(ctx, postID)
	}
	return created, nil
}

func (r *postRepository) removeInteraction(ctx context.Context, model any, userID, postID uint, counter string) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn(counter, decrementExpr(tx, counter)).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if removed {
		cache.InvalidatePost(ctx, postID)
	}
	return removed, nil
}

func (r *postRepository) IncrementShares(ctx context.Context, postID uint) error {
	return r.increment(ctx, postID, "shares_count")
}

// IncrementViews leaves the cached copy alone; view counts may lag.
func (r *postRepository) IncrementViews(ctx context.Context, postID uint) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn("views_count", gorm.Expr("views_count + 1"))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	return nil
}

func (r *postRepository) increment(ctx context.Context, postID uint, counter string) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn(counter, gorm.Expr(counter+" + 1"))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", postID)
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

// MarkInteractions fills Liked and Saved for the viewer with two queries.
func (r *postRepository) MarkInteractions(ctx context.Context, userID uint, posts []*models.Post) error {
	if userID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}

	db := readDB(r.db).WithContext(ctx)
	var liked, saved []uint
	if err := db.Model(&models.Like{}).Where("user_id = ? AND post_id IN ?", userID, ids).Pluck("post_id", &liked).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Model(&models.SavedPost{}).Where("user_id = ? AND post_id IN ?", userID, ids).Pluck("post_id", &saved).Error; err != nil {
		return models.NewInternalError(err)
	}

	likedSet := toSet(liked)
	savedSet := toSet(saved)
	for _, p := range posts {
		_, p.Liked = likedSet[p.ID]
		_, p.Saved = savedSet[p.ID]
	}
	return nil
}

// decrementExpr floors a counter at zero. SQLite spells GREATEST as a
// two-argument MAX.
func decrementExpr(db *gorm.DB, column string) clause.Expr {
	if db.Dialector.Name() == "sqlite" {
		return gorm.Expr("MAX(" + column + " - 1, 0)")
	}
	return gorm.Expr("GREATEST(" + column + " - 1, 0)")
}

func toSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
