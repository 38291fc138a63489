// Package dedupe derives stable identities for extracted transactions.
//
// The hash and the id are pure functions of the normalized field tuple, so
// parsing the same alert email twice always produces the same transaction id
// and a conflict-free upsert at the store layer makes re-ingestion a no-op.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/mailspend/internal/domain"
)

// NormalizeMerchant canonicalizes a merchant string for hashing and rule
// lookups: trim, collapse inner whitespace, strip trailing punctuation,
// lowercase.
func NormalizeMerchant(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".,;:-/ ")
	return strings.ToLower(s)
}

// BuildHash computes the dedupe hash for a transaction. Merchant case and
// whitespace, amount formatting beyond two decimals, and currency case do
// not affect the result; any change to amount, date, type or mode does.
func BuildHash(userID, sourceEmailID, merchantRaw string, amount float64, currency string, date time.Time, txType domain.TransactionType, mode domain.TransactionMode) string {
	canonical := strings.Join([]string{
		userID,
		sourceEmailID,
		NormalizeMerchant(merchantRaw),
		fmt.Sprintf("%.2f", math.Round(amount*100)/100),
		strings.ToUpper(currency),
		date.UTC().Format("2006-01-02T15:04:05Z"),
		string(txType),
		string(mode),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// DeriveID folds a dedupe hash into a UUID-shaped identifier. The first 32
// hex digits of the hash are laid out as 8-4-4-4-12 with the version nibble
// forced to 4 and the variant nibble forced into the RFC 4122 range, so the
// result is syntactically a valid UUID but carries no randomness.
func DeriveID(hash string) string {
	h := strings.ToLower(hash)
	if len(h) < 32 {
		h = h + strings.Repeat("0", 32-len(h))
	}
	b := []byte(h[:32])

	b[12] = '4'
	b[16] = variantNibble(b[16])

	return fmt.Sprintf("%s-%s-%s-%s-%s", b[0:8], b[8:12], b[12:16], b[16:20], b[20:32])
}

// StatementID derives the identifier for a statement summary. Statements
// are at most one per email, so the tuple below is enough to make repeated
// extraction idempotent.
func StatementID(userID, sourceEmailID, issuer string, periodEnd time.Time, totalDue float64) string {
	canonical := strings.Join([]string{
		"statement",
		userID,
		sourceEmailID,
		NormalizeMerchant(issuer),
		periodEnd.UTC().Format("2006-01-02"),
		fmt.Sprintf("%.2f", math.Round(totalDue*100)/100),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return DeriveID(hex.EncodeToString(sum[:]))
}

// variantNibble maps an arbitrary hex digit onto 8..b.
func variantNibble(c byte) byte {
	const digits = "0123456789abcdef"
	v := strings.IndexByte(digits, c)
	if v < 0 {
		v = 0
	}
	return digits[8+(v&0x3)]
}
