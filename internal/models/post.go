// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// PostType is derived from the attached media.
type PostType string

const (
	PostTypeImage   PostType = "image"
	PostTypeVideo   PostType = "video"
	PostTypeGallery PostType = "gallery"
)

// PostStatus is the lifecycle state of a post. Deleted is terminal and acts
// as the soft-delete marker.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
	PostStatusReported  PostStatus = "reported"
	PostStatusDeleted   PostStatus = "deleted"
)

var postTransitions = map[PostStatus][]PostStatus{
	PostStatusDraft:     {PostStatusPublished, PostStatusArchived, PostStatusDeleted},
	PostStatusPublished: {PostStatusArchived, PostStatusReported, PostStatusDeleted},
	PostStatusArchived:  {PostStatusPublished, PostStatusDeleted},
	PostStatusReported:  {PostStatusPublished, PostStatusArchived, PostStatusDeleted},
	PostStatusDeleted:   nil,
}

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	_, ok := postTransitions[s]
	return ok
}

// Location is where the tattoo was done.
type Location struct {
	Name      string   `json:"name,omitempty"`
	Address   string   `json:"address,omitempty"`
	City      string   `json:"city,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// TattooDetails is an optional structured record attached to a post. Every
// field is independently optional.
type TattooDetails struct {
	BodyPart  string   `json:"body_part,omitempty"`
	Size      string   `json:"size,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	Healing   string   `json:"healing,omitempty"`
	Technique string   `json:"technique,omitempty"`
}

// Post is a published unit of tattoo media and text.
type Post struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	User          *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Type          PostType       `gorm:"size:10;not null;default:image" json:"type"`
	Title         string         `gorm:"size:200" json:"title"`
	Description   string         `gorm:"type:text" json:"description"`
	Tags          []string       `gorm:"type:text;serializer:json" json:"tags"`
	Styles        []string       `gorm:"type:text;serializer:json" json:"styles"`
	MediaURLs     []string       `gorm:"column:media_urls;type:text;serializer:json" json:"media_urls"`
	Status        PostStatus     `gorm:"size:10;not null;default:published;index" json:"status"`
	LikesCount    int64          `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int64          `gorm:"not null;default:0" json:"comments_count"`
	SharesCount   int64          `gorm:"not null;default:0" json:"shares_count"`
	SavesCount    int64          `gorm:"not null;default:0" json:"saves_count"`
	ViewsCount    int64          `gorm:"not null;default:0" json:"views_count"`
	City          string         `gorm:"size:100;index" json:"-"`
	Location      *Location      `gorm:"type:text;serializer:json" json:"location,omitempty"`
	TattooDetails *TattooDetails `gorm:"type:text;serializer:json" json:"tattoo_details,omitempty"`
	IsPromoted    bool           `gorm:"not null;default:false" json:"is_promoted"`
	PromotedUntil *time.Time     `json:"promoted_until,omitempty"`
	AllowComments bool           `gorm:"not null" json:"allow_comments"`
	AllowSharing  bool           `gorm:"not null" json:"allow_sharing"`
	ScheduledAt   *time.Time     `json:"scheduled_at,omitempty"`
	NeedsReview   bool           `gorm:"not null;default:false;index" json:"needs_review"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	// Liked and Saved are computed for the requesting user.
	Liked bool `gorm:"-" json:"liked"`
	Saved bool `gorm:"-" json:"saved"`
}

func (p *Post) HasMedia() bool  { return len(p.MediaURLs) > 0 }
func (p *Post) IsGallery() bool { return p.Type == PostTypeGallery }

// IsActivePromotion reports whether the promotion window is open at now.
// A promotion without an expiry stays active until it is switched off.
func (p *Post) IsActivePromotion(now time.Time) bool {
	if !p.IsPromoted {
		return false
	}
	return p.PromotedUntil == nil || p.PromotedUntil.After(now)
}

// CanTransitionTo reports whether the status change is allowed.
func (p *Post) CanTransitionTo(next PostStatus) bool {
	if p.Status == next {
		return p.Status != PostStatusDeleted
	}
	for _, s := range postTransitions[p.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// SyncLocation copies the searchable city column from the location record.
func (p *Post) SyncLocation() {
	if p.Location == nil {
		p.City = ""
		return
	}
	p.City = strings.ToLower(strings.TrimSpace(p.Location.City))
}

// DeterminePostType derives the type from media URLs: a single video file is
// a video, several files form a gallery, anything else is an image.
func DeterminePostType(mediaURLs []string) PostType {
	switch len(mediaURLs) {
	case 0:
		return PostTypeImage
	case 1:
		u := strings.ToLower(mediaURLs[0])
		for _, ext := range []string{".mp4", ".mov", ".avi"} {
			if strings.Contains(u, ext) {
				return PostTypeVideo
			}
		}
		return PostTypeImage
	default:
		return PostTypeGallery
	}
}

// CanPublish requires media or a description and a status that is neither
// deleted nor reported.
func (p *Post) CanPublish() bool {
	hasContent := p.HasMedia() || strings.TrimSpace(p.Description) != ""
	return hasContent && p.Status != PostStatusDeleted && p.Status != PostStatusReported
}

// Like represents a user's like on a post. The (user, post) pair is unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SavedPost is a bookmark. The (user, post) pair is unique.
type SavedPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_save_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_save_user_post;index" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID" json:"post,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a reply on a post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
