package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedRankingDuration records how long scoring and sorting a feed takes.
	FeedRankingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "artenis_feed_ranking_duration_seconds",
		Help:    "Time spent building a feed page",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// FeedCacheResults counts feed cache hits and misses.
	FeedCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artenis_feed_cache_results_total",
		Help: "Feed cache lookups by result",
	}, []string{"result"})

	// PostsFlaggedForReview counts posts the moderation detector flagged.
	PostsFlaggedForReview = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artenis_posts_flagged_for_review_total",
		Help: "Posts flagged for moderation review by source",
	}, []string{"source"})

	// ReputationComputations counts reputation snapshots by resulting level.
	ReputationComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artenis_reputation_computations_total",
		Help: "Reputation snapshots computed by level",
	}, []string{"level"})

	// MediaUploads counts media uploads by kind and outcome.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artenis_media_uploads_total",
		Help: "Media uploads by kind and result",
	}, []string{"kind", "result"})

	// MediaUploadBytes records stored object sizes.
	MediaUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "artenis_media_upload_bytes",
		Help:    "Size of stored media objects in bytes",
		Buckets: prometheus.ExponentialBuckets(16<<10, 4, 8),
	})

	// BookingEvents counts appointment and quote state changes.
	BookingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artenis_booking_events_total",
		Help: "Booking state changes by kind and status",
	}, []string{"kind", "status"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artenis_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// NotificationsPublished counts notifier publishes by target and result.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artenis_notifications_published_total",
		Help: "Notifications published to Redis",
	}, []string{"target", "result"})
)
