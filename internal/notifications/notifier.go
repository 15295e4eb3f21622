// Package notifications provides real-time notification delivery and management.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"artenis/internal/middleware"
	"artenis/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	broadcastChannel  = "notifications:broadcast"
)

// Event types delivered to clients.
const (
	EventFollowCreated        = "follow.created"
	EventPostLiked            = "post.liked"
	EventPostCommented        = "post.commented"
	EventAppointmentRequested = "appointment.requested"
	EventAppointmentConfirmed = "appointment.confirmed"
	EventAppointmentCompleted = "appointment.completed"
	EventAppointmentCancelled = "appointment.cancelled"
	EventQuoteRequested       = "quote.requested"
	EventQuoteSent            = "quote.sent"
	EventQuoteAccepted        = "quote.accepted"
	EventQuoteRejected        = "quote.rejected"
)

// Event is the JSON envelope written to websocket clients.
type Event struct {
	Type      string    `json:"type"`
	ActorID   uint      `json:"actor_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// NotifyUser publishes ev on the user's channel. A nil Redis client makes it
// a no-op.
func (n *Notifier) NotifyUser(ctx context.Context, userID uint, ev Event) error {
	return n.publish(ctx, "user", UserChannel(userID), ev)
}

// NotifyAll publishes ev to every connected client.
func (n *Notifier) NotifyAll(ctx context.Context, ev Event) error {
	return n.publish(ctx, "broadcast", broadcastChannel, ev)
}

func (n *Notifier) publish(ctx context.Context, target, channel string, ev Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		observability.NotificationsPublished.WithLabelValues(target, "error").Inc()
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		observability.NotificationsPublished.WithLabelValues(target, "error").Inc()
		middleware.RedisErrors.WithLabelValues("publish").Inc()
		return err
	}
	observability.NotificationsPublished.WithLabelValues(target, "ok").Inc()
	return nil
}

// StartPatternSubscriber subscribes to every user channel and the broadcast
// channel, calling onMessage for each message until ctx is done.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", broadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// parseUserChannel is the inverse of UserChannel.
func parseUserChannel(channel string) (uint, bool) {
	rest, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
