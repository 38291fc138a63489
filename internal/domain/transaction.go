package domain

import (
	"time"
)

// TransactionType says which way the money moved.
type TransactionType string

const (
	TypeDebited  TransactionType = "debited"
	TypeCredited TransactionType = "credited"
)

// TransactionMode is the payment rail the alert describes.
type TransactionMode string

const (
	ModeUPI        TransactionMode = "upi"
	ModeCreditCard TransactionMode = "credit_card"
	ModeNEFT       TransactionMode = "neft"
	ModeIMPS       TransactionMode = "imps"
	ModeRTGS       TransactionMode = "rtgs"
)

// CategoryMeta is display metadata attached to a categorized transaction.
type CategoryMeta struct {
	Icon   string `json:"icon"`
	Color  string `json:"color"`
	Parent string `json:"parent,omitempty"`
}

// Transaction is one transaction extracted from a transaction-alert email.
// ID and DedupeHash are pure functions of the normalized field tuple, so
// re-extracting the same email always reproduces the same identity.
type Transaction struct {
	ID           string
	UserID       string
	DedupeHash   string
	SourceEmail  string // RawEmail.ID the transaction was extracted from
	Merchant     string
	MerchantRaw  string
	VPA          string
	Amount       float64
	Currency     string
	Date         time.Time
	Type         TransactionType
	Mode         TransactionMode
	CardLast4    string
	Category     string
	Subcategory  string
	Confidence   float64
	Method       string // how the category was decided: manual, merchant_rule, vpa_rule, ...
	NeedsReview  bool
	CategoryMeta CategoryMeta
}

// Statement is a card statement summary extracted alongside transactions.
// At most one per email; emitted only when both the period and the total
// due amount are present in the text.
type Statement struct {
	ID          string
	UserID      string
	Issuer      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	TotalDue    float64
	SourceEmail string
}

// MerchantCategoryRule is a per-user learned mapping from a merchant to a
// category. Unique per (UserID, Merchant); consulted ahead of global rules.
type MerchantCategoryRule struct {
	UserID       string
	Merchant     string
	Category     string
	Subcategory  string
	CategoryMeta CategoryMeta
}
