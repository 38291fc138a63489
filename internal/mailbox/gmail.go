package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/dvloznov/mailspend/internal/domain"
)

const (
	// gmailSelf is the Gmail API alias for the authenticated mailbox.
	gmailSelf = "me"

	// fetchChunkSize caps how many messages one batch round fetches;
	// chunks are separated by fetchChunkDelay to respect rate limits.
	fetchChunkSize  = 100
	fetchChunkDelay = 500 * time.Millisecond

	// fetchConcurrency bounds the concurrent Get calls inside a chunk.
	fetchConcurrency = 10
)

// GmailProvider implements Provider on top of the Gmail REST API.
type GmailProvider struct {
	svc *gmail.Service
	log zerolog.Logger
}

// NewGmailProvider builds a provider from a user token source. The token
// source is expected to refresh itself; expiry handling is out of scope
// here.
func NewGmailProvider(ctx context.Context, ts oauth2.TokenSource, log zerolog.Logger) (*GmailProvider, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("NewGmailProvider: creating gmail service: %w", err)
	}
	return &GmailProvider{svc: svc, log: log}, nil
}

// ListMessageRefs implements Provider.
func (p *GmailProvider) ListMessageRefs(ctx context.Context, userID, query, pageToken string, maxResults int64) (*Page, error) {
	call := p.svc.Users.Messages.List(gmailSelf).Q(query).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("ListMessageRefs: listing messages: %w", err)
	}

	page := &Page{NextPageToken: resp.NextPageToken}
	for _, m := range resp.Messages {
		page.IDs = append(page.IDs, m.Id)
	}
	return page, nil
}

// FetchContent implements Provider.
func (p *GmailProvider) FetchContent(ctx context.Context, userID, id string) (*domain.RawEmail, error) {
	msg, err := p.svc.Users.Messages.Get(gmailSelf, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("FetchContent: fetching message %s: %w", id, err)
	}
	return p.toRawEmail(userID, msg), nil
}

// FetchContentBatch implements Provider. Messages are fetched in chunks of
// at most fetchChunkSize with a small delay between chunks; inside a chunk
// the Get calls fan out with bounded concurrency and all-settled
// semantics, so one bad message never costs its siblings.
func (p *GmailProvider) FetchContentBatch(ctx context.Context, userID string, ids []string) ([]*domain.RawEmail, error) {
	var (
		mu     sync.Mutex
		emails []*domain.RawEmail
	)

	for start := 0; start < len(ids); start += fetchChunkSize {
		end := start + fetchChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(fetchConcurrency)

		for _, id := range ids[start:end] {
			g.Go(func() error {
				email, err := p.FetchContent(gctx, userID, id)
				if err != nil {
					p.log.Warn().Err(err).Str("message_id", id).Msg("Skipping message fetch failure")
					return nil
				}
				mu.Lock()
				emails = append(emails, email)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if end < len(ids) {
			select {
			case <-time.After(fetchChunkDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return emails, nil
}

// toRawEmail flattens a Gmail message into the pipeline's RawEmail shape.
func (p *GmailProvider) toRawEmail(userID string, msg *gmail.Message) *domain.RawEmail {
	email := &domain.RawEmail{
		UserID:            userID,
		Provider:          "gmail",
		ProviderMessageID: msg.Id,
		Snippet:           msg.Snippet,
		ReceivedAt:        time.UnixMilli(msg.InternalDate).UTC(),
		Headers:           make(map[string]string),
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			email.Headers[h.Name] = h.Value
			switch strings.ToLower(h.Name) {
			case "from":
				email.From = h.Value
			case "subject":
				email.Subject = h.Value
			}
		}
		text, html := collectBodies(msg.Payload)
		email.BodyText = text
		email.BodyHTML = html
	}

	return email
}

// collectBodies walks the MIME tree gathering the first text/plain and
// text/html bodies.
func collectBodies(part *gmail.MessagePart) (text, html string) {
	if part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data)
		if err == nil {
			switch {
			case strings.HasPrefix(part.MimeType, "text/plain") && text == "":
				text = string(decoded)
			case strings.HasPrefix(part.MimeType, "text/html") && html == "":
				html = string(decoded)
			}
		}
	}

	for _, child := range part.Parts {
		childText, childHTML := collectBodies(child)
		if text == "" {
			text = childText
		}
		if html == "" {
			html = childHTML
		}
	}
	return text, html
}

// Ensure GmailProvider implements Provider.
var _ Provider = (*GmailProvider)(nil)
