package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tsclient/internal/domain"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(ctx context.Context, tokens int64)
	Remaining() (daily, monthly int64)
}

// BudgetRecorder publishes the remaining budget (nil = no metrics).
type BudgetRecorder interface {
	BudgetRemaining(provider, period string, remaining int64)
}

// BudgetedEmbedder checks the budget before each call and records token usage after it.
// Provider metrics (requests, duration, tokens) stay in transport/openai.
type BudgetedEmbedder struct {
	inner    domain.Embedder
	provider string
	budget   BudgetChecker
	recorder BudgetRecorder
	logger   *zap.Logger
}

// NewBudgetedEmbedder wraps inner with budget enforcement.
func NewBudgetedEmbedder(
	inner domain.Embedder, provider string,
	budget BudgetChecker, recorder BudgetRecorder, logger *zap.Logger,
) *BudgetedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BudgetedEmbedder{
		inner:    inner,
		provider: provider,
		budget:   budget,
		recorder: recorder,
		logger:   logger,
	}
}

// Embed checks the budget, delegates to the inner embedder and records usage.
func (e *BudgetedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.budget.Check(ctx); err != nil {
		e.logger.Error("Embedding budget exceeded", zap.String("provider", e.provider), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("budget check: %w", err)
	}

	start := time.Now()
	result, err := e.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // inner embedders wrap their own errors
	}

	if result.TotalTokens > 0 {
		e.budget.Record(ctx, int64(result.TotalTokens))
		daily, monthly := e.budget.Remaining()
		if e.recorder != nil {
			e.recorder.BudgetRemaining(e.provider, "daily", daily)
			e.recorder.BudgetRemaining(e.provider, "monthly", monthly)
		}
	}

	e.logger.Debug("Embedding budget charged",
		zap.String("provider", e.provider),
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}
