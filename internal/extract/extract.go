// Package extract turns free-form bank alert emails into typed transactions.
//
// Each bank has its own Extractor; the Registry dispatches an email to the
// first extractor whose CanParse predicate accepts it, so more specific bank
// matchers must be registered ahead of generic ones.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/mailspend/internal/domain"
)

// Extractor parses one bank's alert format.
type Extractor interface {
	// Name identifies the extractor in logs and job metadata.
	Name() string

	// CanParse reports whether this extractor understands the email.
	CanParse(email *domain.RawEmail) bool

	// ExtractTransactions returns zero or one transaction. Missing required
	// fields or a low confidence score yield an empty slice, never an error.
	ExtractTransactions(email *domain.RawEmail) []*domain.Transaction

	// ExtractStatement returns a statement summary when the email carries
	// both a statement period and a total-due amount, nil otherwise.
	ExtractStatement(email *domain.RawEmail) *domain.Statement
}

// Registry is an ordered list of extractors. Order is part of the contract:
// evaluation stops at the first extractor that accepts the email.
type Registry struct {
	extractors []Extractor
}

// NewRegistry builds a registry with the given explicit ordering.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// DefaultRegistry returns the standard bank ordering: the richer HDFC
// matcher ahead of the simpler Axis one.
func DefaultRegistry() *Registry {
	return NewRegistry(NewHDFCExtractor(), NewAxisExtractor())
}

// Dispatch returns the first extractor that can parse the email, or nil.
func (r *Registry) Dispatch(email *domain.RawEmail) Extractor {
	for _, ex := range r.extractors {
		if ex.CanParse(email) {
			return ex
		}
	}
	return nil
}

// Names returns the registered extractor names in evaluation order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.extractors))
	for i, ex := range r.extractors {
		names[i] = ex.Name()
	}
	return names
}

// Field weights for the confidence score. The weights sum to 1.0 so the
// score always lands in [0,1].
const (
	weightAmount = 0.35
	weightType   = 0.20
	weightMode   = 0.20
	weightPayee  = 0.15
	weightDate   = 0.10

	// acceptThreshold is the minimum confidence for emitting a transaction.
	acceptThreshold = 0.7
)

var thousandsSep = strings.NewReplacer(",", "")

// parseAmount parses a money string after stripping thousands separators.
func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(thousandsSep.Replace(strings.TrimSpace(s)), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// firstMatch applies an ordered pattern list and returns the first capture.
func firstMatch(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			for _, g := range m[1:] {
				if g != "" {
					return strings.TrimSpace(g), true
				}
			}
		}
	}
	return "", false
}

// extractDate walks an ordered date pattern list. A match that fails
// calendar validation falls through to the next pattern rather than
// aborting, so "31/02/25" never poisons a later valid match.
func extractDate(patterns []*regexp.Regexp, text string) (time.Time, bool) {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if t, ok := parseAlertDate(m[1]); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// scoreFields computes the weighted confidence over the independently
// detected fields. Adding a field never lowers the score.
func scoreFields(amount, txType, mode, payee, dateFromText bool) float64 {
	score := 0.0
	if amount {
		score += weightAmount
	}
	if txType {
		score += weightType
	}
	if mode {
		score += weightMode
	}
	if payee {
		score += weightPayee
	}
	if dateFromText {
		score += weightDate
	}
	return score
}

// fallbackMerchant synthesizes a merchant string when no payee was parsed.
// The transaction is still emitted; only the four hard fields gate
// acceptance.
func fallbackMerchant(cardLast4 string) string {
	if cardLast4 != "" {
		return "Card ••" + cardLast4 + " Transaction"
	}
	return "Unknown Merchant"
}
