package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
)

const (
	balanceSummaryCacheKey = "balance_summary"
	balanceSummaryLockKey  = "lock:balance_summary"
	balanceSummaryCacheTTL = 5 * time.Minute
)

// BalanceSummary is the book-wide position: everything owed to vendors and
// everything owed by retailers, summed from the party ledgers.
type BalanceSummary struct {
	TotalVendorPayable decimal.Decimal `json:"total_vendor_payable"`
	TotalUdhaar        decimal.Decimal `json:"total_udhaar"`
	TotalShortfall     decimal.Decimal `json:"total_shortfall"`
	RefreshedAt        time.Time       `json:"refreshed_at"`
}

// BalanceRefresher computes the summary on demand. Refresh state lives on
// the instance, not in package globals; concurrent callers on one instance
// collapse onto a single computation via the mutex, and the Redis lock keeps
// multiple instances from recomputing simultaneously.
type BalanceRefresher struct {
	mu sync.Mutex
}

func NewBalanceRefresher() *BalanceRefresher {
	return &BalanceRefresher{}
}

// InvalidateBalanceSummary drops the cached summary after a posting commits,
// so the next read recomputes instead of serving stale totals for up to the
// cache TTL.
func InvalidateBalanceSummary() {
	if err := config.RemoveRedisKey(balanceSummaryCacheKey); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "balanceRefresh.go", "InvalidateBalanceSummary", "RemoveCache", balanceSummaryCacheKey, err)
	}
}

func (r *BalanceRefresher) GetBalanceSummary(ctx context.Context, forceRefresh bool) (*BalanceSummary, error) {
	if !forceRefresh {
		var cached BalanceSummary
		found, err := config.GetRedisObject(balanceSummaryCacheKey, &cached)
		if err == nil && found {
			return &cached, nil
		}
	}
	return r.refresh(ctx)
}

func (r *BalanceRefresher) refresh(ctx context.Context) (*BalanceSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, balanceSummaryLockKey, 10*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
		})
		if err == nil {
			defer lock.Release(ctx)
		} else if err == redislock.ErrNotObtained {
			// Another instance just refreshed; its result is good enough.
			var cached BalanceSummary
			if found, cacheErr := config.GetRedisObject(balanceSummaryCacheKey, &cached); cacheErr == nil && found {
				return &cached, nil
			}
		} else {
			return nil, err
		}
	}

	summary, err := computeBalanceSummary(ctx)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(balanceSummaryCacheKey, summary, balanceSummaryCacheTTL); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "balanceRefresh.go", "refresh", "SetCache", summary, err)
	}
	return summary, nil
}

func computeBalanceSummary(ctx context.Context) (*BalanceSummary, error) {
	db := config.GetDB()
	summary := BalanceSummary{RefreshedAt: time.Now().UTC()}

	row := struct {
		Total decimal.Decimal
	}{}
	if err := db.WithContext(ctx).Raw("SELECT COALESCE(SUM(balance), 0) AS total FROM vendors").Scan(&row).Error; err != nil {
		return nil, err
	}
	summary.TotalVendorPayable = row.Total

	if err := db.WithContext(ctx).Raw("SELECT COALESCE(SUM(udhaar_balance), 0) AS total FROM retailers").Scan(&row).Error; err != nil {
		return nil, err
	}
	summary.TotalUdhaar = row.Total

	if err := db.WithContext(ctx).Raw("SELECT COALESCE(SUM(shortfall_balance), 0) AS total FROM retailers").Scan(&row).Error; err != nil {
		return nil, err
	}
	summary.TotalShortfall = row.Total

	return &summary, nil
}
