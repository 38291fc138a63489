package categorize

import (
	"testing"

	"github.com/dvloznov/mailspend/internal/domain"
)

func testRules() *Rules {
	min := 10000.0
	return &Rules{
		ExactMerchants: map[string]CategoryRule{
			"swiggy": {Category: "food_dining", Subcategory: "delivery"},
		},
		KeywordRules: []KeywordRule{
			{Keyword: "pharmacy", Category: "health", Subcategory: "pharmacy", Confidence: 0.8},
			{Keyword: "swiggy", Category: "shopping", Confidence: 0.6},
			{Keyword: "apollo", Category: "shopping", Confidence: 0.5},
		},
		VPAAmountRules: []VPAAmountRule{
			{VPA: "salary.ops@corpbank", MinAmount: &min, Category: "income_salary", Confidence: 0.95},
		},
		VPAPatterns: []VPAPattern{
			{Pattern: "[invalid", Category: "broken", Confidence: 0.9},
			{Pattern: "^zomato", Category: "food_dining", Subcategory: "delivery", Confidence: 0.85},
		},
		NEFTSalary: NEFTSalaryRule{Keywords: []string{"salary", "payroll"}},
	}
}

func testMeta() map[string]domain.CategoryMeta {
	return map[string]domain.CategoryMeta{
		"food_dining":   {Icon: "restaurant", Color: "#e65100"},
		"health":        {Icon: "heart-pulse", Color: "#c62828"},
		"income_salary": {Icon: "banknote", Color: "#1b5e20"},
	}
}

func upiTx(merchantRaw, vpa string, amount float64) *domain.Transaction {
	return &domain.Transaction{
		ID:          "txn-1",
		UserID:      "user-1",
		MerchantRaw: merchantRaw,
		VPA:         vpa,
		Amount:      amount,
		Mode:        domain.ModeUPI,
		Type:        domain.TypeDebited,
	}
}

func TestManualOverrideWinsEverything(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())
	userRules := &UserRules{
		ManualOverrides: map[string]string{"txn-1": "utilities"},
		ExactMerchants: map[string]CategoryRule{
			"swiggy": {Category: "food_dining"},
		},
	}

	r := engine.Categorize(upiTx("Swiggy", "swiggy@ybl", 450), userRules)
	if r.Method != MethodManual {
		t.Errorf("Expected manual method, got %s", r.Method)
	}
	if r.Category != "utilities" {
		t.Errorf("Expected utilities, got %s", r.Category)
	}
	if r.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %v", r.Confidence)
	}
}

func TestUserMerchantBeatsGlobal(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())
	userRules := &UserRules{
		ExactMerchants: map[string]CategoryRule{
			"swiggy": {Category: "groceries", Subcategory: "quick_commerce"},
		},
	}

	r := engine.Categorize(upiTx("SWIGGY", "swiggy@ybl", 450), userRules)
	if r.Method != MethodMerchantRule {
		t.Errorf("Expected merchant_rule, got %s", r.Method)
	}
	if r.Category != "groceries" {
		t.Errorf("Expected user rule to win, got %s", r.Category)
	}
	if r.Confidence != 1.0 {
		t.Errorf("Expected user exact confidence 1.0, got %v", r.Confidence)
	}
}

func TestGlobalMerchantRuleBeatsKeyword(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())

	// "swiggy" is both an exact merchant and a keyword; the exact table
	// must win with the global confidence.
	r := engine.Categorize(upiTx("Swiggy", "swiggy@ybl", 450), nil)
	if r.Method != MethodMerchantRule {
		t.Errorf("Expected merchant_rule, got %s", r.Method)
	}
	if r.Category != "food_dining" || r.Subcategory != "delivery" {
		t.Errorf("Unexpected category %s/%s", r.Category, r.Subcategory)
	}
	if r.Confidence != 0.95 {
		t.Errorf("Expected 0.95, got %v", r.Confidence)
	}
	if r.CategoryMeta.Icon != "restaurant" {
		t.Errorf("Expected meta enrichment, got %+v", r.CategoryMeta)
	}
}

func TestVPAAmountRule(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())

	tx := upiTx("Acme Corp", "salary.ops@corpbank", 85000)
	tx.Type = domain.TypeCredited

	r := engine.Categorize(tx, nil)
	if r.Method != MethodVPARule {
		t.Errorf("Expected vpa_rule, got %s", r.Method)
	}
	if r.Category != "income_salary" {
		t.Errorf("Expected income_salary, got %s", r.Category)
	}
	if r.NeedsReview {
		t.Error("Expected requires_review false")
	}
}

func TestVPAAmountRuleRespectsRange(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())

	// Below the min amount the rule must not fire; the cascade falls
	// through to the default.
	tx := upiTx("Acme Corp", "salary.ops@corpbank", 500)
	r := engine.Categorize(tx, nil)
	if r.Method == MethodVPARule {
		t.Error("Expected amount below range to skip the VPA rule")
	}
}

func TestVPAAmountRuleNeedsPayee(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())

	tx := upiTx("", "salary.ops@corpbank", 85000)
	r := engine.Categorize(tx, nil)
	if r.Method == MethodVPARule {
		t.Error("Expected VPA rule to be skipped without a payee")
	}
}

func TestUserVPAMap(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())
	userRules := &UserRules{
		VPAMap: map[string]VPACategory{
			"landlord@oksbi": {Category: "housing", Subcategory: "rent", NeedsReview: true},
		},
	}

	r := engine.Categorize(upiTx("Mr Landlord", "landlord@oksbi", 25000), userRules)
	if r.Method != MethodVPAMap {
		t.Errorf("Expected vpa_map, got %s", r.Method)
	}
	if r.Category != "housing" || !r.NeedsReview {
		t.Errorf("Unexpected result %+v", r)
	}
	if r.Confidence != 0.95 {
		t.Errorf("Expected default rule confidence, got %v", r.Confidence)
	}
}

func TestVPAPatternSkipsInvalidRegex(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())

	// The broken "[invalid" pattern is dropped at construction; the
	// zomato pattern still works.
	r := engine.Categorize(upiTx("Zomato Order", "zomato-order@ptybl", 300), nil)
	if r.Method != MethodVPAPattern {
		t.Errorf("Expected vpa_pattern, got %s", r.Method)
	}
	if r.Category != "food_dining" {
		t.Errorf("Expected food_dining, got %s", r.Category)
	}
	if len(engine.vpaPatterns) != 1 {
		t.Errorf("Expected 1 compiled pattern, got %d", len(engine.vpaPatterns))
	}
}

func TestNEFTSalaryHeuristic(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())

	tx := &domain.Transaction{
		ID:          "txn-2",
		MerchantRaw: "ACME SALARY JAN",
		Amount:      90000,
		Mode:        domain.ModeNEFT,
		Type:        domain.TypeCredited,
	}

	r := engine.Categorize(tx, nil)
	if r.Method != MethodNEFTSalary {
		t.Errorf("Expected neft_salary, got %s", r.Method)
	}
	if r.Category != "income_salary" {
		t.Errorf("Expected default salary category, got %s", r.Category)
	}
	if r.Confidence != 0.9 {
		t.Errorf("Expected default salary confidence 0.9, got %v", r.Confidence)
	}

	// Same narration but debited: the heuristic must not fire.
	tx.Type = domain.TypeDebited
	if r := engine.Categorize(tx, nil); r.Method == MethodNEFTSalary {
		t.Error("Expected debited NEFT to skip the salary heuristic")
	}
}

func TestBestKeywordWins(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())

	// Payee matches both "pharmacy" (0.8) and "apollo" (0.5); the higher
	// confidence must win.
	r := engine.Categorize(upiTx("Apollo Pharmacy Koramangala", "", 350), nil)
	if r.Method != MethodKeyword {
		t.Errorf("Expected keyword, got %s", r.Method)
	}
	if r.Category != "health" || r.Confidence != 0.8 {
		t.Errorf("Expected health@0.8, got %s@%v", r.Category, r.Confidence)
	}
}

func TestUserKeywordWinsTies(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())
	userRules := &UserRules{
		KeywordRules: []KeywordRule{
			{Keyword: "pharmacy", Category: "personal_care", Confidence: 0.8},
		},
	}

	r := engine.Categorize(upiTx("City Pharmacy", "", 200), userRules)
	if r.Category != "personal_care" {
		t.Errorf("Expected user keyword to win the tie, got %s", r.Category)
	}
}

func TestDefaultResult(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())

	r := engine.Categorize(upiTx("Totally Unknown Shop", "", 100), nil)
	if r.Method != MethodDefault {
		t.Errorf("Expected default, got %s", r.Method)
	}
	if r.Category != "uncategorized" || r.Confidence != 0 || !r.NeedsReview {
		t.Errorf("Unexpected default result %+v", r)
	}
	if r.CategoryMeta.Icon != "tag" {
		t.Errorf("Expected fallback meta, got %+v", r.CategoryMeta)
	}
}

func TestMetaFor(t *testing.T) {
	engine := NewEngine(testRules(), testMeta())

	if m := engine.MetaFor("health"); m.Icon != "heart-pulse" {
		t.Errorf("Expected configured meta, got %+v", m)
	}
	if m := engine.MetaFor("nope"); m.Icon != "tag" || m.Color != "#9e9e9e" {
		t.Errorf("Expected fallback meta, got %+v", m)
	}
}

func TestApply(t *testing.T) {
	tx := upiTx("Swiggy", "swiggy@ybl", 450)
	Apply(tx, Result{
		Category:     "food_dining",
		Subcategory:  "delivery",
		Confidence:   0.95,
		Method:       MethodMerchantRule,
		CategoryMeta: domain.CategoryMeta{Icon: "restaurant"},
	})

	if tx.Category != "food_dining" || tx.Method != MethodMerchantRule {
		t.Errorf("Apply did not copy fields: %+v", tx)
	}
	if tx.CategoryMeta.Icon != "restaurant" {
		t.Errorf("Apply did not copy meta: %+v", tx.CategoryMeta)
	}
}
