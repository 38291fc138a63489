package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/mailspend/internal/domain"
)

func hdfcUPIEmail() *domain.RawEmail {
	return &domain.RawEmail{
		ID:         "email-1",
		UserID:     "user-1",
		From:       "HDFC Bank InstaAlerts <alerts@hdfcbank.net>",
		Subject:    "You have done a UPI txn",
		ReceivedAt: time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC),
		BodyText: "Dear Customer,\n" +
			"Rs. 450.50 has been debited from account **7890 for UPI transaction " +
			"to VPA swiggy@ybl SWIGGY on 15/01/25 14:30. Ref 500123456.",
	}
}

func TestRegistryDispatch(t *testing.T) {
	registry := DefaultRegistry()

	tests := []struct {
		name  string
		email *domain.RawEmail
		want  string
	}{
		{
			name:  "hdfc sender",
			email: &domain.RawEmail{From: "alerts@hdfcbank.net"},
			want:  "hdfc",
		},
		{
			name:  "axis sender",
			email: &domain.RawEmail{From: "alerts@axisbank.com"},
			want:  "axis",
		},
		{
			name:  "hdfc subject",
			email: &domain.RawEmail{From: "noreply@example.com", Subject: "HDFC Bank statement"},
			want:  "hdfc",
		},
		{
			name:  "hdfc wins when both match",
			email: &domain.RawEmail{Subject: "HDFC and Axis Bank alert"},
			want:  "hdfc",
		},
		{
			name:  "unknown sender",
			email: &domain.RawEmail{From: "newsletter@shopping.com", Subject: "Weekly deals"},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := registry.Dispatch(tt.email)
			got := ""
			if ex != nil {
				got = ex.Name()
			}
			if got != tt.want {
				t.Errorf("Dispatch() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistryNames(t *testing.T) {
	names := DefaultRegistry().Names()
	if len(names) != 2 || names[0] != "hdfc" || names[1] != "axis" {
		t.Errorf("Expected [hdfc axis], got %v", names)
	}
}

func TestHDFCExtractUPITransaction(t *testing.T) {
	txs := NewHDFCExtractor().ExtractTransactions(hdfcUPIEmail())
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}
	tx := txs[0]

	if tx.Amount != 450.50 {
		t.Errorf("Expected amount 450.50, got %v", tx.Amount)
	}
	if tx.Type != domain.TypeDebited {
		t.Errorf("Expected debited, got %s", tx.Type)
	}
	if tx.Mode != domain.ModeUPI {
		t.Errorf("Expected upi, got %s", tx.Mode)
	}
	if tx.MerchantRaw != "SWIGGY" {
		t.Errorf("Expected merchant SWIGGY, got %q", tx.MerchantRaw)
	}
	if tx.Merchant != "swiggy" {
		t.Errorf("Expected normalized merchant swiggy, got %q", tx.Merchant)
	}
	if tx.VPA != "swiggy@ybl" {
		t.Errorf("Expected VPA swiggy@ybl, got %q", tx.VPA)
	}
	if tx.Currency != "INR" {
		t.Errorf("Expected INR, got %q", tx.Currency)
	}

	wantDate := time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)
	if !tx.Date.Equal(wantDate) {
		t.Errorf("Expected date %v, got %v", wantDate, tx.Date)
	}
	if tx.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0 with all fields present, got %v", tx.Confidence)
	}
	if tx.ID == "" || tx.DedupeHash == "" {
		t.Error("Expected derived id and hash to be set")
	}
	if tx.Category != "" || tx.Method != "" {
		t.Error("Extractor must leave categorization fields empty")
	}
}

func TestHDFCExtractDeterministicIdentity(t *testing.T) {
	ex := NewHDFCExtractor()
	first := ex.ExtractTransactions(hdfcUPIEmail())
	second := ex.ExtractTransactions(hdfcUPIEmail())
	if len(first) != 1 || len(second) != 1 {
		t.Fatal("Expected 1 transaction from both runs")
	}
	if first[0].ID != second[0].ID || first[0].DedupeHash != second[0].DedupeHash {
		t.Error("Re-extracting the same email must reproduce id and hash")
	}
}

func TestHDFCRejectsMissingHardFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "no amount",
			body: "has been debited from account for UPI transaction to VPA swiggy@ybl SWIGGY on 15/01/25.",
		},
		{
			name: "no direction keyword",
			body: "Rs. 450.50 UPI transaction to VPA swiggy@ybl SWIGGY on 15/01/25.",
		},
		{
			name: "no payment mode",
			body: "Rs. 450.50 has been debited from your account towards SWIGGY on 15/01/25.",
		},
	}

	ex := NewHDFCExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := hdfcUPIEmail()
			// The subject is searched too, so it must not leak a mode.
			email.Subject = "Transaction alert"
			email.BodyText = tt.body
			if txs := ex.ExtractTransactions(email); len(txs) != 0 {
				t.Errorf("Expected no transactions, got %d", len(txs))
			}
		})
	}
}

func TestHDFCFallbackMerchant(t *testing.T) {
	email := hdfcUPIEmail()
	email.Subject = "Transaction alert"
	email.BodyText = "Rs. 2,500.00 was spent on your HDFC Bank Credit Card ending 1234 on 02/02/2025."

	txs := NewHDFCExtractor().ExtractTransactions(email)
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}
	tx := txs[0]

	if tx.Mode != domain.ModeCreditCard {
		t.Errorf("Expected credit_card mode, got %s", tx.Mode)
	}
	if tx.CardLast4 != "1234" {
		t.Errorf("Expected card last4 1234, got %q", tx.CardLast4)
	}
	if tx.MerchantRaw != "Card ••1234 Transaction" {
		t.Errorf("Expected fallback merchant, got %q", tx.MerchantRaw)
	}
	if tx.Amount != 2500.00 {
		t.Errorf("Expected amount 2500 after separator strip, got %v", tx.Amount)
	}
}

func TestHDFCCardOverUPI(t *testing.T) {
	email := hdfcUPIEmail()
	email.BodyText = "Rs. 799.00 debited via UPI using your Credit Card ending 5678 towards Zomato on 10/01/25."

	txs := NewHDFCExtractor().ExtractTransactions(email)
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Mode != domain.ModeUPI {
		t.Errorf("Expected UPI to win the rail precedence, got %s", txs[0].Mode)
	}
	if txs[0].CardLast4 != "5678" {
		t.Errorf("Expected card last4 carried on UPI, got %q", txs[0].CardLast4)
	}
}

func TestHDFCDateFallsBackToReceivedAt(t *testing.T) {
	email := hdfcUPIEmail()
	email.BodyText = "Rs. 450.50 has been debited for UPI transaction to VPA swiggy@ybl SWIGGY via ref 500123."

	txs := NewHDFCExtractor().ExtractTransactions(email)
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}
	if !txs[0].Date.Equal(email.ReceivedAt) {
		t.Errorf("Expected ReceivedAt fallback, got %v", txs[0].Date)
	}
	// amount + type + mode + payee, no date in text
	if txs[0].Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %v", txs[0].Confidence)
	}
}

func TestHDFCExtractStatement(t *testing.T) {
	email := hdfcUPIEmail()
	email.Subject = "Your HDFC Bank Credit Card Statement"
	email.BodyText = "Statement Period: 16/12/24 to 15/01/25\nTotal Amount Due: Rs. 12,345.67\nMinimum due Rs. 620.00"

	st := NewHDFCExtractor().ExtractStatement(email)
	if st == nil {
		t.Fatal("Expected a statement")
	}
	if st.Issuer != "HDFC Bank" {
		t.Errorf("Expected issuer HDFC Bank, got %q", st.Issuer)
	}
	if st.TotalDue != 12345.67 {
		t.Errorf("Expected total due 12345.67, got %v", st.TotalDue)
	}
	if !st.PeriodStart.Equal(time.Date(2024, 12, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected period start %v", st.PeriodStart)
	}
	if !st.PeriodEnd.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected period end %v", st.PeriodEnd)
	}
	if st.ID == "" {
		t.Error("Expected deterministic statement id")
	}
}

func TestHDFCStatementRequiresBothFields(t *testing.T) {
	ex := NewHDFCExtractor()

	noDue := hdfcUPIEmail()
	noDue.BodyText = "Statement Period: 16/12/24 to 15/01/25"
	if ex.ExtractStatement(noDue) != nil {
		t.Error("Expected nil without a total due")
	}

	noPeriod := hdfcUPIEmail()
	noPeriod.BodyText = "Total Amount Due: Rs. 12,345.67"
	if ex.ExtractStatement(noPeriod) != nil {
		t.Error("Expected nil without a statement period")
	}
}

func TestAxisExtractTransaction(t *testing.T) {
	email := &domain.RawEmail{
		ID:         "email-2",
		UserID:     "user-1",
		From:       "alerts@axisbank.com",
		Subject:    "Transaction alert",
		ReceivedAt: time.Date(2025, 1, 21, 9, 0, 0, 0, time.UTC),
		BodyText:   "Rs. 899.00 debited from your account via UPI merchant@okaxis at Amazon Pay on 20-01-25.",
	}

	txs := NewAxisExtractor().ExtractTransactions(email)
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}
	tx := txs[0]

	if tx.Amount != 899.00 {
		t.Errorf("Expected amount 899, got %v", tx.Amount)
	}
	if tx.Type != domain.TypeDebited || tx.Mode != domain.ModeUPI {
		t.Errorf("Unexpected type/mode: %s/%s", tx.Type, tx.Mode)
	}
	if tx.MerchantRaw != "Amazon Pay" {
		t.Errorf("Expected payee Amazon Pay, got %q", tx.MerchantRaw)
	}
	if tx.VPA != "merchant@okaxis" {
		t.Errorf("Expected VPA merchant@okaxis, got %q", tx.VPA)
	}
	if !tx.Date.Equal(time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected date %v", tx.Date)
	}
}

func TestAxisNoStatement(t *testing.T) {
	email := &domain.RawEmail{From: "alerts@axisbank.com", BodyText: "Statement Period: 01/01/25 to 31/01/25 Total due Rs. 100"}
	if NewAxisExtractor().ExtractStatement(email) != nil {
		t.Error("Axis extractor must not emit statements")
	}
}

func TestParseAlertDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"15/01/25", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"15/01/25 14:30", time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC), true},
		{"15/01/2025 14:30:45", time.Date(2025, 1, 15, 14, 30, 45, 0, time.UTC), true},
		{"15 Jan 2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"3-September-2024", time.Date(2024, 9, 3, 0, 0, 0, 0, time.UTC), true},
		{"01/01/69", time.Date(2069, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"01/01/70", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"31/02/25", time.Time{}, false},
		{"15/13/25", time.Time{}, false},
		{"15/01/25 25:00", time.Time{}, false},
		{"not a date", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseAlertDate(tt.input)
			if ok != tt.ok {
				t.Fatalf("parseAlertDate(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("parseAlertDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractDateSkipsInvalidMatches(t *testing.T) {
	// The first pattern hit is the impossible 31/02/25; extraction must
	// fall through to the later valid date.
	text := "on 31/02/25 something, corrected on 01/03/25"
	got, ok := extractDate(hdfcDatePatterns, text)
	if !ok {
		t.Fatal("Expected a date")
	}
	if !got.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected 2025-03-01, got %v", got)
	}
}

func TestStripHTML(t *testing.T) {
	html := `<html><head><style>.a{color:red}</style></head>
<body><p>Rs. 450.50 debited</p><br><div>to VPA swiggy@ybl&nbsp;SWIGGY</div>
<script>alert(1)</script></body></html>`

	text := StripHTML(html)
	for _, want := range []string{"Rs. 450.50 debited", "swiggy@ybl SWIGGY"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in stripped text:\n%s", want, text)
		}
	}
	for _, banned := range []string{"<", "color:red", "alert(1)", "&nbsp;"} {
		if strings.Contains(text, banned) {
			t.Errorf("Did not expect %q in stripped text:\n%s", banned, text)
		}
	}
}

func TestHDFCExtractsFromHTMLBody(t *testing.T) {
	email := hdfcUPIEmail()
	email.BodyText = ""
	email.BodyHTML = "<p>Rs. 450.50 has been debited for UPI transaction to VPA swiggy@ybl SWIGGY on 15/01/25.</p>"

	txs := NewHDFCExtractor().ExtractTransactions(email)
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction from HTML body, got %d", len(txs))
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"450.50", 450.50, true},
		{"1,23,456.78", 123456.78, true},
		{"0", 0, false},
		{"-10", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseAmount(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseAmount(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}
