package extract

import (
	"regexp"
	"strings"

	"github.com/dvloznov/mailspend/internal/dedupe"
	"github.com/dvloznov/mailspend/internal/domain"
)

// AxisExtractor parses Axis Bank alerts. Axis uses a single consistent
// template, so one pattern per field is enough; the reject-on-missing
// contract is the same as for the richer extractors.
type AxisExtractor struct{}

// NewAxisExtractor creates the Axis alert extractor.
func NewAxisExtractor() *AxisExtractor {
	return &AxisExtractor{}
}

// Name implements Extractor.
func (x *AxisExtractor) Name() string { return "axis" }

// CanParse accepts mail from axisbank.com senders or with Axis Bank in the
// subject line.
func (x *AxisExtractor) CanParse(email *domain.RawEmail) bool {
	if strings.Contains(strings.ToLower(email.From), "axisbank.com") {
		return true
	}
	return strings.Contains(strings.ToLower(email.Subject), "axis bank")
}

var (
	axisAmountRe = regexp.MustCompile(`(?i)(?:rs\.?|inr)\s*([\d,]+(?:\.\d{1,2})?)`)
	axisDebitRe  = regexp.MustCompile(`(?i)\bdebited\b`)
	axisCreditRe = regexp.MustCompile(`(?i)\bcredited\b`)
	axisUPIRe    = regexp.MustCompile(`(?i)\bUPI\b`)
	axisNEFTRe   = regexp.MustCompile(`(?i)\bNEFT\b`)
	axisIMPSRe   = regexp.MustCompile(`(?i)\bIMPS\b`)
	axisCardRe   = regexp.MustCompile(`(?i)card\s+(?:no\.?\s*)?[x\*]*(\d{4})`)
	axisPayeeRe  = regexp.MustCompile(`(?i)\b(?:to|at)\s+([\w .&'-]{3,40}?)\s+on\b`)
	axisVPARe    = regexp.MustCompile(`([a-zA-Z0-9][a-zA-Z0-9._-]{1,255}@[a-zA-Z]{2,64})`)
	axisDateRe   = regexp.MustCompile(`(\d{1,2}-\d{1,2}-\d{2,4}|\d{1,2}/\d{1,2}/\d{2,4})`)
)

// ExtractTransactions implements Extractor.
func (x *AxisExtractor) ExtractTransactions(email *domain.RawEmail) []*domain.Transaction {
	text := searchText(email.Subject, email.BodyText, email.BodyHTML, email.Snippet)

	var amount float64
	amountOK := false
	if m := axisAmountRe.FindStringSubmatch(text); m != nil {
		amount, amountOK = parseAmount(m[1])
	}

	var txType domain.TransactionType
	switch {
	case axisDebitRe.MatchString(text):
		txType = domain.TypeDebited
	case axisCreditRe.MatchString(text):
		txType = domain.TypeCredited
	}

	var mode domain.TransactionMode
	cardLast4 := ""
	switch {
	case axisUPIRe.MatchString(text):
		mode = domain.ModeUPI
	case axisNEFTRe.MatchString(text):
		mode = domain.ModeNEFT
	case axisIMPSRe.MatchString(text):
		mode = domain.ModeIMPS
	default:
		if m := axisCardRe.FindStringSubmatch(text); m != nil {
			mode = domain.ModeCreditCard
			cardLast4 = m[1]
		}
	}

	payee := ""
	payeeOK := false
	if m := axisPayeeRe.FindStringSubmatch(text); m != nil {
		payee = strings.TrimSpace(m[1])
		payeeOK = true
	}

	vpa := ""
	if m := axisVPARe.FindStringSubmatch(text); m != nil {
		vpa = strings.ToLower(m[1])
	}

	date, dateFromText := extractDate([]*regexp.Regexp{axisDateRe}, text)
	if !dateFromText {
		date = email.ReceivedAt
	}

	confidence := scoreFields(amountOK && amount > 0, txType != "", mode != "", payeeOK, dateFromText)

	if !amountOK || amount <= 0 || txType == "" || mode == "" || confidence < acceptThreshold {
		return nil
	}

	if !payeeOK {
		payee = fallbackMerchant(cardLast4)
	}

	hash := dedupe.BuildHash(email.UserID, email.ID, payee, amount, "INR", date, txType, mode)

	return []*domain.Transaction{{
		ID:          dedupe.DeriveID(hash),
		UserID:      email.UserID,
		DedupeHash:  hash,
		SourceEmail: email.ID,
		Merchant:    dedupe.NormalizeMerchant(payee),
		MerchantRaw: payee,
		VPA:         vpa,
		Amount:      amount,
		Currency:    "INR",
		Date:        date,
		Type:        txType,
		Mode:        mode,
		CardLast4:   cardLast4,
		Confidence:  confidence,
	}}
}

// ExtractStatement implements Extractor. Axis statement mails are not
// modeled; only transaction alerts are parsed.
func (x *AxisExtractor) ExtractStatement(email *domain.RawEmail) *domain.Statement {
	return nil
}
