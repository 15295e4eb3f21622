package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix       = "user:%d"
	PostKeyPrefix       = "post:%d"
	ArtistKeyPrefix     = "artist:%d"
	FeedKeyPrefix       = "feed:%d:%d:%s"
	ReputationKeyPrefix = "reputation:%d"
)

const (
	UserTTL       = 5 * time.Minute
	PostTTL       = 30 * time.Minute
	ArtistTTL     = 10 * time.Minute
	FeedTTL       = 2 * time.Minute
	ReputationTTL = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func ArtistKey(userID uint) string {
	return fmt.Sprintf(ArtistKeyPrefix, userID)
}

// FeedKey identifies one feed page for a viewer (0 for anonymous) and a
// filter fingerprint.
func FeedKey(viewerID uint, page int, filterHash string) string {
	return fmt.Sprintf(FeedKeyPrefix, viewerID, page, filterHash)
}

func ReputationKey(userID uint) string {
	return fmt.Sprintf(ReputationKeyPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
	Invalidate(ctx, ReputationKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

func InvalidateArtist(ctx context.Context, userID uint) {
	Invalidate(ctx, ArtistKey(userID))
}

// InvalidateFeeds drops every cached feed page of a viewer.
func InvalidateFeeds(ctx context.Context, viewerID uint) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, fmt.Sprintf("feed:%d:*", viewerID), 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
}
