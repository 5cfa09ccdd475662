package tsclient

import (
	"github.com/kailas-cloud/tsclient/internal/db"
	"github.com/kailas-cloud/tsclient/internal/domain"
	"github.com/kailas-cloud/tsclient/internal/usecase/embedding"
)

// Embedder converts near-text queries to vectors.
type Embedder = domain.Embedder

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult = domain.EmbeddingResult

// KVStore is the key-value store behind WithSearchCache.
// Get must return ErrCacheMiss for a missing key.
type KVStore = db.KVStore

// OpenAIConfig configures an OpenAI-compatible embeddings API.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a self-hosted or proxy provider.
	BaseURL string
	Model   string
	// Dimensions requests shortened embeddings from models that support it (0 = model default).
	Dimensions int
	// Provider labels embedding metrics. Default: "openai".
	Provider string
}

// BudgetAction is what happens once an embedding budget is spent.
type BudgetAction = embedding.BudgetAction

// Budget actions.
const (
	BudgetWarn   = embedding.BudgetActionWarn
	BudgetReject = embedding.BudgetActionReject
)

// EmbeddingBudget limits the tokens spent on query embeddings. Zero means unlimited.
type EmbeddingBudget struct {
	DailyTokens   int64
	MonthlyTokens int64
	// Action defaults to BudgetWarn, which only logs.
	Action BudgetAction
}
