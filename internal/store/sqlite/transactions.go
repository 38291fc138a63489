package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dvloznov/mailspend/internal/domain"
	"github.com/dvloznov/mailspend/internal/store"
)

// TransactionStore implements store.TransactionStore on SQLite.
type TransactionStore struct {
	db *sql.DB
}

// NewTransactionStore creates the store over an opened database.
func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// UpsertMany implements store.TransactionStore. Conflicts on the derived
// id are silently ignored, which is what makes re-ingestion idempotent.
func (s *TransactionStore) UpsertMany(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("TransactionStore.UpsertMany: begin: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx,
		`INSERT INTO transactions
			(id, user_id, dedupe_hash, source_email_id, merchant, merchant_raw, vpa, amount, currency,
			 txn_date, txn_type, txn_mode, card_last4, category, subcategory, confidence, method, needs_review, category_meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("TransactionStore.UpsertMany: prepare: %w", err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		_, err := stmt.ExecContext(ctx,
			tx.ID, tx.UserID, tx.DedupeHash, tx.SourceEmail, tx.Merchant, tx.MerchantRaw, tx.VPA,
			tx.Amount, tx.Currency, tx.Date, string(tx.Type), string(tx.Mode), tx.CardLast4,
			tx.Category, tx.Subcategory, tx.Confidence, tx.Method, boolToInt(tx.NeedsReview),
			marshalJSON(tx.CategoryMeta),
		)
		if err != nil {
			return fmt.Errorf("TransactionStore.UpsertMany: inserting %s: %w", tx.ID, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("TransactionStore.UpsertMany: commit: %w", err)
	}
	return nil
}

// ListByMerchant implements store.TransactionStore.
func (s *TransactionStore) ListByMerchant(ctx context.Context, userID, merchant string) ([]*domain.Transaction, error) {
	return s.list(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? AND merchant = ? ORDER BY txn_date DESC`,
		userID, merchant)
}

// ListByDateRange implements store.TransactionStore.
func (s *TransactionStore) ListByDateRange(ctx context.Context, userID string, from, to time.Time) ([]*domain.Transaction, error) {
	return s.list(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? AND txn_date >= ? AND txn_date <= ? ORDER BY txn_date`,
		userID, from, to)
}

// UpdateCategory implements store.TransactionStore. Only category fields
// move; identity fields never change after extraction.
func (s *TransactionStore) UpdateCategory(ctx context.Context, id, category, subcategory string, meta domain.CategoryMeta) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions
		 SET category = ?, subcategory = ?, category_meta = ?, method = 'manual', confidence = 1.0, needs_review = 0
		 WHERE id = ?`,
		category, subcategory, marshalJSON(meta), id,
	)
	if err != nil {
		return fmt.Errorf("TransactionStore.UpdateCategory: %w", err)
	}
	return nil
}

const txColumns = `id, user_id, dedupe_hash, source_email_id, merchant, merchant_raw, vpa, amount, currency,
	txn_date, txn_type, txn_mode, card_last4, category, subcategory, confidence, method, needs_review, category_meta`

func (s *TransactionStore) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("TransactionStore.list: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var txType, txMode, meta string
		var needsReview int
		err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.DedupeHash, &tx.SourceEmail, &tx.Merchant, &tx.MerchantRaw, &tx.VPA,
			&tx.Amount, &tx.Currency, &tx.Date, &txType, &txMode, &tx.CardLast4,
			&tx.Category, &tx.Subcategory, &tx.Confidence, &tx.Method, &needsReview, &meta,
		)
		if err != nil {
			return nil, fmt.Errorf("TransactionStore.list: scan: %w", err)
		}
		tx.Type = domain.TransactionType(txType)
		tx.Mode = domain.TransactionMode(txMode)
		tx.NeedsReview = needsReview != 0
		unmarshalJSON(meta, &tx.CategoryMeta)
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// StatementStore implements store.StatementStore on SQLite.
type StatementStore struct {
	db *sql.DB
}

// NewStatementStore creates the store over an opened database.
func NewStatementStore(db *sql.DB) *StatementStore {
	return &StatementStore{db: db}
}

// Upsert implements store.StatementStore; conflict on id is a no-op.
func (s *StatementStore) Upsert(ctx context.Context, st *domain.Statement) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statements (id, user_id, issuer, period_start, period_end, total_due, source_email_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		st.ID, st.UserID, st.Issuer, st.PeriodStart, st.PeriodEnd, st.TotalDue, st.SourceEmail,
	)
	if err != nil {
		return fmt.Errorf("StatementStore.Upsert: %w", err)
	}
	return nil
}

// MerchantRuleStore implements store.MerchantRuleStore on SQLite.
type MerchantRuleStore struct {
	db *sql.DB
}

// NewMerchantRuleStore creates the store over an opened database.
func NewMerchantRuleStore(db *sql.DB) *MerchantRuleStore {
	return &MerchantRuleStore{db: db}
}

// Upsert implements store.MerchantRuleStore; re-categorizing a merchant
// overwrites the previous rule.
func (s *MerchantRuleStore) Upsert(ctx context.Context, rule *domain.MerchantCategoryRule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO merchant_rules (user_id, merchant, category, subcategory, category_meta)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, merchant) DO UPDATE
		 SET category = excluded.category, subcategory = excluded.subcategory, category_meta = excluded.category_meta`,
		rule.UserID, rule.Merchant, rule.Category, rule.Subcategory, marshalJSON(rule.CategoryMeta),
	)
	if err != nil {
		return fmt.Errorf("MerchantRuleStore.Upsert: %w", err)
	}
	return nil
}

// ListByUser implements store.MerchantRuleStore.
func (s *MerchantRuleStore) ListByUser(ctx context.Context, userID string) ([]*domain.MerchantCategoryRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, merchant, category, subcategory, category_meta FROM merchant_rules WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("MerchantRuleStore.ListByUser: %w", err)
	}
	defer rows.Close()

	var rules []*domain.MerchantCategoryRule
	for rows.Next() {
		var rule domain.MerchantCategoryRule
		var meta string
		if err := rows.Scan(&rule.UserID, &rule.Merchant, &rule.Category, &rule.Subcategory, &meta); err != nil {
			return nil, fmt.Errorf("MerchantRuleStore.ListByUser: scan: %w", err)
		}
		unmarshalJSON(meta, &rule.CategoryMeta)
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

var (
	_ store.TransactionStore  = (*TransactionStore)(nil)
	_ store.StatementStore    = (*StatementStore)(nil)
	_ store.MerchantRuleStore = (*MerchantRuleStore)(nil)
)
