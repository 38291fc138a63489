// Package store defines the persistence interfaces the pipeline consumes.
// Implementations live in subpackages (sqlite) and in test doubles; the
// pipeline itself never depends on a concrete backend.
package store

import (
	"context"
	"time"

	"github.com/dvloznov/mailspend/internal/domain"
)

// UpsertResult reports what a raw-email upsert did. IsNew comes straight
// from the store's insert-vs-update discrimination, not from timestamp
// heuristics.
type UpsertResult struct {
	ID    string
	IsNew bool
}

// RawEmailStore persists fetched mailbox messages keyed by
// (userID, provider, providerMessageID). Upsert overwrites content fields
// on re-sync and never mutates identity fields.
type RawEmailStore interface {
	Upsert(ctx context.Context, email *domain.RawEmail) (UpsertResult, error)
	FindByProviderMessageID(ctx context.Context, userID, provider, messageID string) (*domain.RawEmail, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.RawEmail, error)
}

// TransactionStore persists extracted transactions. UpsertMany must be
// idempotent: a conflict on id is a no-op, which together with derived ids
// makes repeated ingestion of the same email safe.
type TransactionStore interface {
	UpsertMany(ctx context.Context, txs []*domain.Transaction) error
	ListByMerchant(ctx context.Context, userID, merchant string) ([]*domain.Transaction, error)
	ListByDateRange(ctx context.Context, userID string, from, to time.Time) ([]*domain.Transaction, error)
	UpdateCategory(ctx context.Context, id, category, subcategory string, meta domain.CategoryMeta) error
}

// StatementStore persists statement summaries. Conflict on id is a no-op;
// statements are never algorithmically updated.
type StatementStore interface {
	Upsert(ctx context.Context, st *domain.Statement) error
}

// MerchantRuleStore persists per-user merchant category rules, unique per
// (userID, merchant).
type MerchantRuleStore interface {
	Upsert(ctx context.Context, rule *domain.MerchantCategoryRule) error
	ListByUser(ctx context.Context, userID string) ([]*domain.MerchantCategoryRule, error)
}
