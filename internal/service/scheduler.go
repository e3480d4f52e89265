package service

import (
	"context"
	"time"

	"jobfeed/internal/cache"
	"jobfeed/internal/notifications"
	"jobfeed/internal/observability"
	"jobfeed/internal/repository"
)

const (
	DefaultSchedulerInterval  = 30 * time.Second
	DefaultSchedulerBatchSize = 100
	promotionTimeout          = 5 * time.Second
)

// Scheduler publishes drafts whose scheduled time has passed.
type Scheduler struct {
	posts     repository.PostRepository
	events    EventPublisher
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewScheduler(posts repository.PostRepository, events EventPublisher, interval time.Duration, batchSize int) *Scheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultSchedulerBatchSize
	}
	return &Scheduler{
		posts:     posts,
		events:    events,
		interval:  interval,
		batchSize: batchSize,
		now:       utcNow,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			observability.LogAsyncOperationError(ctx, "scheduler.sweep", err, nil)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep promotes up to one batch of due drafts and returns how many were
// published. Each promotion has its own timeout; a failed one is logged and
// the sweep moves on.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		observability.SchedulerSweepDuration.Observe(time.Since(start).Seconds())
	}()

	ctx = observability.WithCorrelationID(ctx, observability.GenerateCorrelationID())
	now := s.now()
	observability.LogAsyncOperationStart(ctx, "scheduler.sweep", map[string]interface{}{"now": now})

	ids, err := s.posts.DueScheduled(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.promote(ctx, id, now)
		if err != nil {
			observability.SchedulerFailures.Inc()
			observability.LogAsyncOperationError(ctx, "scheduler.promote", err, map[string]interface{}{"post_id": id})
			continue
		}
		if !ok {
			continue
		}
		promoted++
		observability.SchedulerPromotions.Inc()
		publishEvent(ctx, s.events, notifications.FeedEvent{Type: notifications.EventPostPublished, PostID: id})
	}

	if promoted > 0 {
		cache.InvalidateTrending(ctx)
	}
	observability.LogAsyncOperationEnd(ctx, "scheduler.sweep", map[string]interface{}{
		"due":      len(ids),
		"promoted": promoted,
	})
	return promoted, ctx.Err()
}

func (s *Scheduler) promote(ctx context.Context, id uint, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, promotionTimeout)
	defer cancel()
	return s.posts.PromoteScheduled(ctx, id, now)
}
