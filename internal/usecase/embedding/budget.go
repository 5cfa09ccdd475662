// Package embedding enforces token budgets on the embedder behind near-text search.
package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tsclient/internal/domain"
)

// BudgetAction defines behavior when the token budget is spent.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but lets the request through.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the request with domain.ErrEmbeddingQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// KeyPrefix namespaces budget counters in a shared store.
const KeyPrefix = "tsclient:budget:"

// Counters outlive their period by a margin.
const (
	dailyTTL     = 48 * time.Hour
	monthlyTTL   = 62 * 24 * time.Hour
	persistLimit = 2 * time.Second
)

// Limits caps token usage per UTC day and month. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
	Action  BudgetAction
}

// Validate checks that the limits are usable.
func (l Limits) Validate() error {
	if l.Daily < 0 || l.Monthly < 0 {
		return fmt.Errorf("budget limits must not be negative (daily=%d, monthly=%d)", l.Daily, l.Monthly)
	}
	switch l.Action {
	case "", BudgetActionWarn, BudgetActionReject:
		return nil
	default:
		return fmt.Errorf("unknown budget action %q", l.Action)
	}
}

// Store persists counters so usage survives restarts and is shared between clients.
type Store interface {
	Add(ctx context.Context, key string, tokens int64, ttl time.Duration) error
	Load(ctx context.Context, key string) (int64, error)
}

// Tracker counts tokens in memory and writes them through to an optional Store.
// Check never touches the store.
type Tracker struct {
	mu          sync.Mutex
	provider    string
	limits      Limits
	dailyUsed   int64
	monthlyUsed int64
	day         time.Time
	month       time.Time
	store       Store
	logger      *zap.Logger
	now         func() time.Time
}

// NewTracker creates a tracker for provider. An empty action means warn.
func NewTracker(provider string, limits Limits, logger *zap.Logger) *Tracker {
	if limits.Action == "" {
		limits.Action = BudgetActionWarn
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		provider: provider,
		limits:   limits,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	t.day, t.month = periods(t.now())
	return t
}

// WithStore attaches a store and loads the counters of the current period.
// Load failures are logged and leave the counters at zero.
func (t *Tracker) WithStore(ctx context.Context, store Store) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = store
	now := t.now()
	if v, err := store.Load(ctx, t.dailyKey(now)); err == nil {
		t.dailyUsed = v
	} else {
		t.logger.Warn("Failed to load daily token budget", zap.String("provider", t.provider), zap.Error(err))
	}
	if v, err := store.Load(ctx, t.monthlyKey(now)); err == nil {
		t.monthlyUsed = v
	} else {
		t.logger.Warn("Failed to load monthly token budget", zap.String("provider", t.provider), zap.Error(err))
	}
	t.logger.Debug("Token budget loaded",
		zap.String("provider", t.provider),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("monthly_used", t.monthlyUsed),
	)
	return t
}

func (t *Tracker) dailyKey(now time.Time) string {
	return KeyPrefix + t.provider + ":daily:" + now.Format("2006-01-02")
}

func (t *Tracker) monthlyKey(now time.Time) string {
	return KeyPrefix + t.provider + ":monthly:" + now.Format("2006-01")
}

// Check returns domain.ErrEmbeddingQuotaExceeded when a limit is reached and the action is reject.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	dailyOver := t.limits.Daily > 0 && t.dailyUsed >= t.limits.Daily
	monthlyOver := t.limits.Monthly > 0 && t.monthlyUsed >= t.limits.Monthly
	if !dailyOver && !monthlyOver {
		return nil
	}
	if t.limits.Action == BudgetActionReject {
		return fmt.Errorf("%s: %w", t.provider, domain.ErrEmbeddingQuotaExceeded)
	}
	t.logger.Warn("Token budget exceeded",
		zap.String("provider", t.provider),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("daily_limit", t.limits.Daily),
		zap.Int64("monthly_used", t.monthlyUsed),
		zap.Int64("monthly_limit", t.limits.Monthly),
	)
	return nil
}

// Record adds consumed tokens. The store write outlives a canceled ctx but is bounded in time.
func (t *Tracker) Record(ctx context.Context, tokens int64) {
	t.mu.Lock()
	t.rollover()
	t.dailyUsed += tokens
	t.monthlyUsed += tokens
	store := t.store
	now := t.now()
	t.mu.Unlock()

	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistLimit)
	defer cancel()

	if err := store.Add(ctx, t.dailyKey(now), tokens, dailyTTL); err != nil {
		t.logger.Warn("Failed to persist daily token budget", zap.String("provider", t.provider), zap.Error(err))
	}
	if err := store.Add(ctx, t.monthlyKey(now), tokens, monthlyTTL); err != nil {
		t.logger.Warn("Failed to persist monthly token budget", zap.String("provider", t.provider), zap.Error(err))
	}
}

// Remaining returns the tokens left today and this month, -1 for an unlimited period.
func (t *Tracker) Remaining() (daily, monthly int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	return remaining(t.limits.Daily, t.dailyUsed), remaining(t.limits.Monthly, t.monthlyUsed)
}

// Used returns the tokens consumed today and this month.
func (t *Tracker) Used() (daily, monthly int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	return t.dailyUsed, t.monthlyUsed
}

// rollover zeroes the counters when the UTC day or month changes. Caller holds mu.
func (t *Tracker) rollover() {
	day, month := periods(t.now())
	if day.After(t.day) {
		t.dailyUsed = 0
		t.day = day
	}
	if month.After(t.month) {
		t.monthlyUsed = 0
		t.month = month
	}
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

func periods(now time.Time) (day, month time.Time) {
	now = now.UTC()
	day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	month = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return day, month
}
