package mailsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/mailspend/internal/dedupe"
	"github.com/dvloznov/mailspend/internal/domain"
)

// BulkCategorizeByMerchant records a user-level merchant rule and rewrites
// the category fields of that user's stored transactions for the merchant.
// Transaction identity (id, dedupe hash) is untouched: a manual correction
// never changes what counts as a duplicate. Returns how many transactions
// were updated.
func (o *Orchestrator) BulkCategorizeByMerchant(ctx context.Context, userID, merchant, category, subcategory string) (int, error) {
	if userID == "" || merchant == "" || category == "" {
		return 0, fmt.Errorf("BulkCategorizeByMerchant: user id, merchant and category are required")
	}

	normalized := dedupe.NormalizeMerchant(merchant)
	meta := o.engine.MetaFor(category)

	rule := &domain.MerchantCategoryRule{
		UserID:       userID,
		Merchant:     normalized,
		Category:     category,
		Subcategory:  subcategory,
		CategoryMeta: meta,
	}
	if err := o.rules.Upsert(ctx, rule); err != nil {
		return 0, fmt.Errorf("BulkCategorizeByMerchant: saving rule: %w", err)
	}

	txs, err := o.txns.ListByMerchant(ctx, userID, normalized)
	if err != nil {
		return 0, fmt.Errorf("BulkCategorizeByMerchant: listing transactions: %w", err)
	}

	updated := 0
	for _, tx := range txs {
		if err := o.txns.UpdateCategory(ctx, tx.ID, category, subcategory, meta); err != nil {
			return updated, fmt.Errorf("BulkCategorizeByMerchant: updating %s: %w", tx.ID, err)
		}
		updated++
	}
	return updated, nil
}
