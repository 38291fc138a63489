package notionexport

import (
	"testing"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/mailspend/internal/domain"
)

func sampleTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:          "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d",
		UserID:      "user-1",
		Merchant:    "swiggy",
		Amount:      450.50,
		Currency:    "INR",
		Date:        time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Type:        domain.TypeDebited,
		Mode:        domain.ModeUPI,
		VPA:         "swiggy@ybl",
		Category:    "food_dining",
		Subcategory: "delivery",
		Confidence:  0.95,
	}
}

func TestTransactionToNotionProperties(t *testing.T) {
	props := TransactionToNotionProperties(sampleTransaction())

	title, ok := props["Transaction ID"].(notionapi.TitleProperty)
	if !ok {
		t.Fatal("Expected Transaction ID title property")
	}
	if got := title.Title[0].Text.Content; got != "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d" {
		t.Errorf("Expected transaction id in title, got %q", got)
	}

	amount, ok := props["Amount"].(notionapi.NumberProperty)
	if !ok {
		t.Fatal("Expected Amount number property")
	}
	if amount.Number != 450.50 {
		t.Errorf("Expected amount 450.50, got %v", amount.Number)
	}

	category, ok := props["Category"].(notionapi.SelectProperty)
	if !ok {
		t.Fatal("Expected Category select property")
	}
	if category.Select.Name != "food_dining" {
		t.Errorf("Expected category food_dining, got %q", category.Select.Name)
	}

	vpa, ok := props["VPA"].(notionapi.RichTextProperty)
	if !ok {
		t.Fatal("Expected VPA rich text property")
	}
	if vpa.RichText[0].Text.Content != "swiggy@ybl" {
		t.Errorf("Expected VPA swiggy@ybl, got %q", vpa.RichText[0].Text.Content)
	}
}

func TestTransactionToNotionProperties_OptionalFields(t *testing.T) {
	tx := sampleTransaction()
	tx.Category = ""
	tx.Subcategory = ""
	tx.VPA = ""
	tx.CardLast4 = ""
	tx.Confidence = 0

	props := TransactionToNotionProperties(tx)

	for _, key := range []string{"Category", "Subcategory", "VPA", "Card", "Confidence"} {
		if _, ok := props[key]; ok {
			t.Errorf("Expected %s to be omitted when empty", key)
		}
	}
	if _, ok := props["Transaction ID"]; !ok {
		t.Error("Expected Transaction ID to always be present")
	}
}

func TestExtractTransactionID(t *testing.T) {
	page := notionapi.Page{
		Properties: notionapi.Properties{
			"Transaction ID": &notionapi.TitleProperty{
				Title: []notionapi.RichText{
					{PlainText: "tx-123"},
				},
			},
		},
	}

	if got := extractTransactionID(page); got != "tx-123" {
		t.Errorf("Expected tx-123, got %q", got)
	}

	empty := notionapi.Page{Properties: notionapi.Properties{}}
	if got := extractTransactionID(empty); got != "" {
		t.Errorf("Expected empty id, got %q", got)
	}
}
