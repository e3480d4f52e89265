package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	AccountKeyPrefix  = "account:%d"
	TrendingKeyPrefix = "feed:trending:%d:%d"
	TrendingKeyMatch  = "feed:trending:*"
)

const (
	AccountTTL = 5 * time.Minute
	// TrendingTTL is the fallback when TRENDING_CACHE_TTL is unset.
	TrendingTTL = time.Minute
)

func AccountKey(accountID uint) string {
	return fmt.Sprintf(AccountKeyPrefix, accountID)
}

// TrendingKey identifies one (limit, days) trending window.
func TrendingKey(limit, days int) string {
	return fmt.Sprintf(TrendingKeyPrefix, limit, days)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateAccount(ctx context.Context, accountID uint) {
	Invalidate(ctx, AccountKey(accountID))
}

// InvalidateTrending drops every cached trending window.
func InvalidateTrending(ctx context.Context) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, TrendingKeyMatch, 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
}
