package domain

import (
	"time"
)

// RawEmail is one mailbox message as fetched from the provider.
// Identity is (UserID, Provider, ProviderMessageID); content fields may be
// overwritten on re-fetch, identity fields never change.
type RawEmail struct {
	ID                string
	UserID            string
	Provider          string // e.g. "gmail"
	ProviderMessageID string

	From       string
	Subject    string
	Snippet    string
	ReceivedAt time.Time
	BodyText   string
	BodyHTML   string
	Headers    map[string]string
}
