package notionexport

import (
	"github.com/jomei/notionapi"

	"github.com/dvloznov/mailspend/internal/domain"
)

// TransactionToNotionProperties converts a transaction to Notion properties.
// The derived transaction id goes into the title column; because the id is
// deterministic, re-exporting the same transaction can be detected by
// querying for the title.
func TransactionToNotionProperties(tx *domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		"Transaction ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.ID,
					},
				},
			},
		},
		"Merchant": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.Merchant,
					},
				},
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: tx.Amount,
		},
		"Currency": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Currency,
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(tx.Date)
					return &d
				}(),
			},
		},
		"Type": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(tx.Type),
			},
		},
		"Mode": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(tx.Mode),
			},
		},
		"Needs Review": notionapi.CheckboxProperty{
			Checkbox: tx.NeedsReview,
		},
	}

	if tx.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Category,
			},
		}
	}

	if tx.Subcategory != "" {
		props["Subcategory"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Subcategory,
			},
		}
	}

	if tx.VPA != "" {
		props["VPA"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.VPA,
					},
				},
			},
		}
	}

	if tx.CardLast4 != "" {
		props["Card"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: "••" + tx.CardLast4,
					},
				},
			},
		}
	}

	if tx.Confidence > 0 {
		props["Confidence"] = notionapi.NumberProperty{
			Number: tx.Confidence,
		}
	}

	return props
}

// extractTransactionID extracts the transaction id from a Notion page's
// title property. Returns empty string if not found.
func extractTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties["Transaction ID"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
