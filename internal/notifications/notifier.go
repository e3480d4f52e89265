// Package notifications provides real-time feed event delivery.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"jobfeed/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// FeedChannel carries every feed event.
const FeedChannel = "feed:events"

const userChannelPattern = "notifications:user:*"

// Feed event types.
const (
	EventPostCreated   = "post.created"
	EventPostPublished = "post.published"
	EventPostLiked     = "post.liked"
	EventPostCommented = "post.commented"
	EventPostModerated = "post.moderated"
	EventPostDeleted   = "post.deleted"
)

// FeedEvent is the JSON payload published for every feed change.
type FeedEvent struct {
	Type     string         `json:"type"`
	PostID   uint           `json:"post_id"`
	ActorID  uint           `json:"actor_id,omitempty"`
	AuthorID uint           `json:"author_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	At       time.Time      `json:"at"`
}

// Notifier publishes feed events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishFeedEvent sends ev to the feed channel. Events caused by someone
// other than the post author are also sent to the author's channel.
func (n *Notifier) PublishFeedEvent(ctx context.Context, ev FeedEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if err := n.rdb.Publish(ctx, FeedChannel, payload).Err(); err != nil {
		return err
	}
	if ev.AuthorID != 0 && ev.ActorID != 0 && ev.AuthorID != ev.ActorID {
		return n.PublishUser(ctx, ev.AuthorID, string(payload))
	}
	return nil
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// StartFeedSubscriber subscribes to the feed channel and every user channel
// and calls onMessage for each incoming message until ctx is done.
func (n *Notifier) StartFeedSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, FeedChannel, userChannelPattern)
	// wait for the subscription to be live so no early publish is lost
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe feed channels: %w", err)
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
							middleware.Logger.Error("panic in feed subscriber",
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
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}
