// Package categorize assigns a spending category to extracted transactions
// through a fixed-order rule cascade: manual overrides, exact merchant
// tables, VPA rules, a salary heuristic, keyword patterns, and finally an
// uncategorized default. First match wins except for keyword rules, where
// the highest-confidence match wins.
package categorize

import (
	"regexp"
	"strings"

	"github.com/dvloznov/mailspend/internal/dedupe"
	"github.com/dvloznov/mailspend/internal/domain"
)

// Method tags recorded on every categorization result.
const (
	MethodManual       = "manual"
	MethodMerchantRule = "merchant_rule"
	MethodVPARule      = "vpa_rule"
	MethodVPAMap       = "vpa_map"
	MethodVPAPattern   = "vpa_pattern"
	MethodNEFTSalary   = "neft_salary"
	MethodKeyword      = "keyword"
	MethodDefault      = "default"
)

const (
	defaultSalaryCategory   = "income_salary"
	defaultSalaryConfidence = 0.9
	defaultRuleConfidence   = 0.95
	userExactConfidence     = 1.0
	globalExactConfidence   = 0.95
)

// Result is the outcome of one categorization.
type Result struct {
	Category     string
	Subcategory  string
	Confidence   float64
	Method       string
	NeedsReview  bool
	CategoryMeta domain.CategoryMeta
}

// Engine evaluates the cascade against an immutable rule set. Construct it
// once at startup and share it; it is safe for concurrent use.
type Engine struct {
	rules       *Rules
	meta        map[string]domain.CategoryMeta
	vpaPatterns []compiledVPAPattern
}

type compiledVPAPattern struct {
	re   *regexp.Regexp
	rule VPAPattern
}

// NewEngine builds an engine from the loaded rule documents. VPA patterns
// that do not compile are dropped here; categorization must never fail
// because of one bad rule.
func NewEngine(rules *Rules, meta map[string]domain.CategoryMeta) *Engine {
	e := &Engine{rules: rules, meta: meta}
	for _, p := range rules.VPAPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		e.vpaPatterns = append(e.vpaPatterns, compiledVPAPattern{re: re, rule: p})
	}
	return e
}

// Categorize runs the cascade for one transaction. userRules may be nil.
func (e *Engine) Categorize(tx *domain.Transaction, userRules *UserRules) Result {
	payee := dedupe.NormalizeMerchant(tx.MerchantRaw)
	vpa := strings.ToLower(tx.VPA)

	// 1. Manual override short-circuits everything.
	if userRules != nil {
		if category, ok := userRules.ManualOverrides[tx.ID]; ok {
			return e.enrich(Result{
				Category:   category,
				Confidence: 1.0,
				Method:     MethodManual,
			})
		}
	}

	// 2. Exact merchant match: user table first, then global.
	if userRules != nil {
		if rule, ok := lookupMerchant(userRules.ExactMerchants, payee); ok {
			return e.enrich(ruleResult(rule, userExactConfidence, MethodMerchantRule))
		}
	}
	if rule, ok := lookupMerchant(e.rules.ExactMerchants, payee); ok {
		return e.enrich(ruleResult(rule, globalExactConfidence, MethodMerchantRule))
	}

	// 3. VPA + amount-range rules, UPI only and only when a payee exists.
	if tx.Mode == domain.ModeUPI && payee != "" && vpa != "" {
		if userRules != nil {
			if r, ok := matchVPAAmount(userRules.VPAAmountRules, vpa, tx.Amount); ok {
				return e.enrich(r)
			}
		}
		if r, ok := matchVPAAmount(e.rules.VPAAmountRules, vpa, tx.Amount); ok {
			return e.enrich(r)
		}
	}

	// 4. User's direct VPA map.
	if userRules != nil && vpa != "" {
		if entry, ok := userRules.VPAMap[vpa]; ok {
			confidence := entry.Confidence
			if confidence == 0 {
				confidence = defaultRuleConfidence
			}
			return e.enrich(Result{
				Category:    entry.Category,
				Subcategory: entry.Subcategory,
				Confidence:  confidence,
				Method:      MethodVPAMap,
				NeedsReview: entry.NeedsReview,
			})
		}
	}

	// 5. Global VPA regex patterns, first compiled pattern that matches.
	if vpa != "" {
		for _, p := range e.vpaPatterns {
			if p.re.MatchString(vpa) {
				return e.enrich(Result{
					Category:    p.rule.Category,
					Subcategory: p.rule.Subcategory,
					Confidence:  p.rule.Confidence,
					Method:      MethodVPAPattern,
				})
			}
		}
	}

	// 6. NEFT salary heuristic for credited transfers.
	if tx.Mode == domain.ModeNEFT && tx.Type == domain.TypeCredited {
		for _, kw := range e.rules.NEFTSalary.Keywords {
			if kw != "" && strings.Contains(payee, strings.ToLower(kw)) {
				category := e.rules.NEFTSalary.Category
				if category == "" {
					category = defaultSalaryCategory
				}
				confidence := e.rules.NEFTSalary.Confidence
				if confidence == 0 {
					confidence = defaultSalaryConfidence
				}
				return e.enrich(Result{
					Category:   category,
					Confidence: confidence,
					Method:     MethodNEFTSalary,
				})
			}
		}
	}

	// 7. Keyword rules: best confidence across user and global lists wins.
	var best *KeywordRule
	if userRules != nil {
		best = bestKeyword(userRules.KeywordRules, payee, best)
	}
	best = bestKeyword(e.rules.KeywordRules, payee, best)
	if best != nil {
		return e.enrich(Result{
			Category:    best.Category,
			Subcategory: best.Subcategory,
			Confidence:  best.Confidence,
			Method:      MethodKeyword,
		})
	}

	// 8. Nothing matched.
	return e.enrich(Result{
		Category:    "uncategorized",
		Confidence:  0,
		Method:      MethodDefault,
		NeedsReview: true,
	})
}

// MetaFor returns the display metadata for a category, falling back to a
// generic icon and color for unknown keys.
func (e *Engine) MetaFor(category string) domain.CategoryMeta {
	if meta, ok := e.meta[category]; ok {
		return meta
	}
	return domain.CategoryMeta{Icon: "tag", Color: "#9e9e9e"}
}

// Apply writes a result back onto the transaction.
func Apply(tx *domain.Transaction, r Result) {
	tx.Category = r.Category
	tx.Subcategory = r.Subcategory
	tx.Confidence = r.Confidence
	tx.Method = r.Method
	tx.NeedsReview = r.NeedsReview
	tx.CategoryMeta = r.CategoryMeta
}

func (e *Engine) enrich(r Result) Result {
	r.CategoryMeta = e.MetaFor(r.Category)
	return r
}

func ruleResult(rule CategoryRule, fallbackConfidence float64, method string) Result {
	confidence := rule.Confidence
	if confidence == 0 {
		confidence = fallbackConfidence
	}
	return Result{
		Category:    rule.Category,
		Subcategory: rule.Subcategory,
		Confidence:  confidence,
		Method:      method,
	}
}

// lookupMerchant matches the normalized payee case-insensitively against a
// merchant table whose keys may themselves carry arbitrary case.
func lookupMerchant(table map[string]CategoryRule, payee string) (CategoryRule, bool) {
	if len(table) == 0 || payee == "" {
		return CategoryRule{}, false
	}
	if rule, ok := table[payee]; ok {
		return rule, true
	}
	for merchant, rule := range table {
		if dedupe.NormalizeMerchant(merchant) == payee {
			return rule, true
		}
	}
	return CategoryRule{}, false
}

func matchVPAAmount(rules []VPAAmountRule, vpa string, amount float64) (Result, bool) {
	for _, rule := range rules {
		if !strings.EqualFold(rule.VPA, vpa) {
			continue
		}
		if rule.MinAmount != nil && amount < *rule.MinAmount {
			continue
		}
		if rule.MaxAmount != nil && amount > *rule.MaxAmount {
			continue
		}
		confidence := rule.Confidence
		if confidence == 0 {
			confidence = defaultRuleConfidence
		}
		return Result{
			Category:    rule.Category,
			Subcategory: rule.Subcategory,
			Confidence:  confidence,
			Method:      MethodVPARule,
			NeedsReview: rule.NeedsReview,
		}, true
	}
	return Result{}, false
}

func bestKeyword(rules []KeywordRule, payee string, best *KeywordRule) *KeywordRule {
	for i := range rules {
		rule := &rules[i]
		if rule.Keyword == "" || !strings.Contains(payee, strings.ToLower(rule.Keyword)) {
			continue
		}
		if best == nil || rule.Confidence > best.Confidence {
			best = rule
		}
	}
	return best
}
