package extract

import (
	"regexp"
	"strings"

	"github.com/dvloznov/mailspend/internal/dedupe"
	"github.com/dvloznov/mailspend/internal/domain"
)

// HDFCExtractor parses HDFC Bank transaction alerts and credit card
// statement notifications. HDFC uses several alert templates, so every
// field is matched against an ordered pattern list and the first hit wins.
type HDFCExtractor struct{}

// NewHDFCExtractor creates the HDFC alert extractor.
func NewHDFCExtractor() *HDFCExtractor {
	return &HDFCExtractor{}
}

// Name implements Extractor.
func (x *HDFCExtractor) Name() string { return "hdfc" }

// CanParse accepts mail from hdfcbank.com/net senders or with HDFC in the
// subject line.
func (x *HDFCExtractor) CanParse(email *domain.RawEmail) bool {
	from := strings.ToLower(email.From)
	if strings.Contains(from, "hdfcbank.com") || strings.Contains(from, "hdfcbank.net") {
		return true
	}
	return strings.Contains(strings.ToLower(email.Subject), "hdfc")
}

var (
	hdfcAmountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:rs\.?|inr|₹)\s*([\d,]+(?:\.\d{1,2})?)`),
		regexp.MustCompile(`(?i)amount\s+of\s+([\d,]+(?:\.\d{1,2})?)`),
	}

	hdfcDebitRe  = regexp.MustCompile(`(?i)\b(?:debited|spent|paid|deducted|withdrawn|sent)\b`)
	hdfcCreditRe = regexp.MustCompile(`(?i)\b(?:credited|received|deposited|refunded)\b`)

	hdfcUPIRe  = regexp.MustCompile(`(?i)\bUPI\b|\bVPA\b`)
	hdfcNEFTRe = regexp.MustCompile(`(?i)\bNEFT\b`)
	hdfcIMPSRe = regexp.MustCompile(`(?i)\bIMPS\b`)
	hdfcRTGSRe = regexp.MustCompile(`(?i)\bRTGS\b`)

	// Card number templates, most specific first. The UPI variant covers
	// credit-card-on-UPI alerts where the rail is UPI but the instrument
	// is still a card.
	hdfcCardOverUPIRe = regexp.MustCompile(`(?i)credit\s+card\s*(?:ending\s*(?:in\s*)?|no\.?\s*)?[x\*]*(\d{4})`)
	hdfcCardPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)credit\s+card\s*(?:ending\s*(?:in\s*)?|no\.?\s*)?[x\*]*(\d{4})`),
		regexp.MustCompile(`(?i)\bcard\s*(?:ending\s*(?:in\s*)?|no\.?\s*)?[x\*]*(\d{4})`),
		regexp.MustCompile(`(?i)\bcard\s+[x\*]{4,}(\d{4})`),
	}

	hdfcPayeePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bto\s+VPA\s+[a-z0-9._-]+@[a-z]+\s+([A-Z][\w .&'-]{2,40}?)(?:\s+on\b|\s*[.\n]|$)`),
		regexp.MustCompile(`(?i)\b(?:to|at|towards)\s+([A-Z][\w .&'-]{2,40}?)\s+(?:on|via|using|ref)\b`),
		regexp.MustCompile(`(?i)\bfrom\s+([A-Z][\w .&'-]{2,40}?)\s+(?:on|via|ref)\b`),
		regexp.MustCompile(`(?i)\binfo:\s*([^\n.]{3,60})`),
	}

	// Grounded in real HDFC narration formats: user@provider VPAs.
	hdfcVPARe = regexp.MustCompile(`([a-zA-Z0-9][a-zA-Z0-9._-]{1,255}@[a-zA-Z]{2,64})`)

	hdfcDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bon\s+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}(?:[ ,]+\d{1,2}:\d{2}(?::\d{2})?)?)`),
		regexp.MustCompile(`(?i)\bon\s+(\d{1,2}[ -][A-Za-z]{3,9}[ -]\d{4})`),
		regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{2,4})`),
	}

	hdfcStatementPeriodRe = regexp.MustCompile(`(?i)statement\s+period[:\s]+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{1,2}[ -][A-Za-z]{3,9}[ -]\d{4})\s+to\s+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{1,2}[ -][A-Za-z]{3,9}[ -]\d{4})`)
	hdfcTotalDueRe        = regexp.MustCompile(`(?i)total\s+(?:amount\s+)?due[:\s]*(?:rs\.?|inr|₹)?\s*([\d,]+(?:\.\d{1,2})?)`)
)

// ExtractTransactions implements Extractor. It emits at most one
// transaction; alerts missing a required field or scoring below the
// acceptance threshold are silently skipped.
func (x *HDFCExtractor) ExtractTransactions(email *domain.RawEmail) []*domain.Transaction {
	text := searchText(email.Subject, email.BodyText, email.BodyHTML, email.Snippet)

	var amount float64
	amountOK := false
	if raw, ok := firstMatch(hdfcAmountPatterns, text); ok {
		amount, amountOK = parseAmount(raw)
	}

	txType := detectType(text)
	mode, cardLast4 := detectMode(text)

	payee, payeeOK := firstMatch(hdfcPayeePatterns, text)

	vpa := ""
	if m := hdfcVPARe.FindStringSubmatch(text); m != nil {
		vpa = strings.ToLower(m[1])
	}

	date, dateFromText := extractDate(hdfcDatePatterns, text)
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

// ExtractStatement implements Extractor. Statement detection is independent
// of transaction extraction: it requires both an explicit statement period
// and a total-due amount.
func (x *HDFCExtractor) ExtractStatement(email *domain.RawEmail) *domain.Statement {
	text := searchText(email.Subject, email.BodyText, email.BodyHTML, email.Snippet)

	period := hdfcStatementPeriodRe.FindStringSubmatch(text)
	if period == nil {
		return nil
	}
	start, okStart := parseAlertDate(period[1])
	end, okEnd := parseAlertDate(period[2])
	if !okStart || !okEnd {
		return nil
	}

	due := hdfcTotalDueRe.FindStringSubmatch(text)
	if due == nil {
		return nil
	}
	totalDue, ok := parseAmount(due[1])
	if !ok {
		return nil
	}

	return &domain.Statement{
		ID:          dedupe.StatementID(email.UserID, email.ID, "HDFC Bank", end, totalDue),
		UserID:      email.UserID,
		Issuer:      "HDFC Bank",
		PeriodStart: start,
		PeriodEnd:   end,
		TotalDue:    totalDue,
		SourceEmail: email.ID,
	}
}

// detectType resolves the transaction direction; debit keywords win when
// both appear, matching how HDFC phrases reversal alerts.
func detectType(text string) domain.TransactionType {
	if hdfcDebitRe.MatchString(text) {
		return domain.TypeDebited
	}
	if hdfcCreditRe.MatchString(text) {
		return domain.TypeCredited
	}
	return ""
}

// detectMode applies the rail precedence: UPI first (with a check for a
// card riding on UPI), then the bank transfer rails, then plain card
// templates.
func detectMode(text string) (domain.TransactionMode, string) {
	if hdfcUPIRe.MatchString(text) {
		last4 := ""
		if m := hdfcCardOverUPIRe.FindStringSubmatch(text); m != nil {
			last4 = m[1]
		}
		return domain.ModeUPI, last4
	}
	if hdfcNEFTRe.MatchString(text) {
		return domain.ModeNEFT, ""
	}
	if hdfcIMPSRe.MatchString(text) {
		return domain.ModeIMPS, ""
	}
	if hdfcRTGSRe.MatchString(text) {
		return domain.ModeRTGS, ""
	}
	for _, re := range hdfcCardPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return domain.ModeCreditCard, m[1]
		}
	}
	return "", ""
}

