package categorize

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dvloznov/mailspend/internal/domain"
)

// CategoryRule is a direct merchant-to-category mapping.
type CategoryRule struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// KeywordRule matches a substring of the payee. Multiple keyword rules may
// apply to the same payee; the engine picks the highest-confidence match.
type KeywordRule struct {
	Keyword     string  `json:"keyword"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// VPAAmountRule matches a UPI VPA with an optional amount range.
type VPAAmountRule struct {
	VPA         string   `json:"vpa"`
	MinAmount   *float64 `json:"min_amount,omitempty"`
	MaxAmount   *float64 `json:"max_amount,omitempty"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
	NeedsReview bool     `json:"requires_review"`
}

// VPAPattern matches a VPA against a regular expression. Patterns that do
// not compile are skipped at evaluation time rather than failing the load.
type VPAPattern struct {
	Pattern     string  `json:"pattern"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// NEFTSalaryRule configures the salary heuristic for credited NEFT
// transfers.
type NEFTSalaryRule struct {
	Keywords   []string `json:"keywords"`
	Category   string   `json:"category,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

// Rules is the global declarative rule set, loaded once at startup and
// treated as read-only for the life of the process.
type Rules struct {
	ExactMerchants map[string]CategoryRule `json:"exact_merchants"`
	KeywordRules   []KeywordRule           `json:"keyword_rules"`
	VPAAmountRules []VPAAmountRule         `json:"vpa_amount_rules"`
	VPAPatterns    []VPAPattern            `json:"vpa_patterns"`
	NEFTSalary     NEFTSalaryRule          `json:"neft_salary"`
}

// VPACategory is one entry of a user's direct VPA-to-category map.
type VPACategory struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	NeedsReview bool    `json:"requires_review"`
}

// UserRules are per-user overrides consulted ahead of the global rules at
// each cascade step.
type UserRules struct {
	// ManualOverrides maps a transaction id to a category picked by the
	// user. Highest precedence of all.
	ManualOverrides map[string]string `json:"manual_overrides"`

	ExactMerchants map[string]CategoryRule `json:"exact_merchants"`
	VPAAmountRules []VPAAmountRule         `json:"vpa_amount_rules"`
	VPAMap         map[string]VPACategory  `json:"vpa_map"`
	KeywordRules   []KeywordRule           `json:"keyword_rules"`
}

// LoadRules reads the global rule document. A missing or malformed file is
// a configuration error the caller should treat as fatal at startup.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRules: reading %s: %w", path, err)
	}
	var rules Rules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("LoadRules: parsing %s: %w", path, err)
	}
	return &rules, nil
}

// LoadMeta reads the category metadata document (icon, color, parent per
// category key).
func LoadMeta(path string) (map[string]domain.CategoryMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadMeta: reading %s: %w", path, err)
	}
	var meta map[string]domain.CategoryMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("LoadMeta: parsing %s: %w", path, err)
	}
	return meta, nil
}
