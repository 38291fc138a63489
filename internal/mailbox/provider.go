// Package mailbox abstracts the email provider the sync pipeline reads
// from. The orchestrator only sees the Provider interface; the Gmail
// implementation lives alongside it.
package mailbox

import (
	"context"

	"github.com/dvloznov/mailspend/internal/domain"
)

// Page is one page of message references returned by a list call.
type Page struct {
	IDs           []string
	NextPageToken string
}

// Provider is the read-only mailbox interface the pipeline consumes.
// Token refresh and provider auth are the implementation's concern.
type Provider interface {
	// ListMessageRefs returns message ids matching the query. Pass the
	// returned NextPageToken to continue; an empty token means the listing
	// is exhausted.
	ListMessageRefs(ctx context.Context, userID, query, pageToken string, maxResults int64) (*Page, error)

	// FetchContent fetches one full message.
	FetchContent(ctx context.Context, userID, id string) (*domain.RawEmail, error)

	// FetchContentBatch fetches many messages with all-settled semantics:
	// individual failures are logged and skipped, never aborting the
	// batch. The result contains only the messages that were fetched.
	FetchContentBatch(ctx context.Context, userID string, ids []string) ([]*domain.RawEmail, error)
}
