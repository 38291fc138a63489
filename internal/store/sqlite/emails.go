package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvloznov/mailspend/internal/domain"
	"github.com/dvloznov/mailspend/internal/store"
)

// RawEmailStore implements store.RawEmailStore on SQLite.
type RawEmailStore struct {
	db *sql.DB
}

// NewRawEmailStore creates the store over an opened database.
func NewRawEmailStore(db *sql.DB) *RawEmailStore {
	return &RawEmailStore{db: db}
}

// Upsert implements store.RawEmailStore. The insert-vs-update signal is
// taken from the row lookup inside the same transaction, not from
// timestamp proximity.
func (s *RawEmailStore) Upsert(ctx context.Context, email *domain.RawEmail) (store.UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("RawEmailStore.Upsert: begin: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM raw_emails WHERE user_id = ? AND provider = ? AND provider_message_id = ?`,
		email.UserID, email.Provider, email.ProviderMessageID,
	).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		id := uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO raw_emails
				(id, user_id, provider, provider_message_id, from_addr, subject, snippet, received_at, body_text, body_html, headers)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, email.UserID, email.Provider, email.ProviderMessageID,
			email.From, email.Subject, email.Snippet, email.ReceivedAt,
			email.BodyText, email.BodyHTML, marshalJSON(email.Headers),
		)
		if err != nil {
			return store.UpsertResult{}, fmt.Errorf("RawEmailStore.Upsert: insert: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return store.UpsertResult{}, fmt.Errorf("RawEmailStore.Upsert: commit: %w", err)
		}
		return store.UpsertResult{ID: id, IsNew: true}, nil

	case err != nil:
		return store.UpsertResult{}, fmt.Errorf("RawEmailStore.Upsert: lookup: %w", err)
	}

	// Re-fetch of a known message: last-write-wins on content fields,
	// identity fields untouched.
	_, err = tx.ExecContext(ctx,
		`UPDATE raw_emails
		 SET from_addr = ?, subject = ?, snippet = ?, received_at = ?, body_text = ?, body_html = ?, headers = ?
		 WHERE id = ?`,
		email.From, email.Subject, email.Snippet, email.ReceivedAt,
		email.BodyText, email.BodyHTML, marshalJSON(email.Headers), existingID,
	)
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("RawEmailStore.Upsert: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return store.UpsertResult{}, fmt.Errorf("RawEmailStore.Upsert: commit: %w", err)
	}
	return store.UpsertResult{ID: existingID, IsNew: false}, nil
}

// FindByProviderMessageID implements store.RawEmailStore; (nil, nil) when
// absent.
func (s *RawEmailStore) FindByProviderMessageID(ctx context.Context, userID, provider, messageID string) (*domain.RawEmail, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_message_id, from_addr, subject, snippet, received_at, body_text, body_html, headers
		 FROM raw_emails WHERE user_id = ? AND provider = ? AND provider_message_id = ?`,
		userID, provider, messageID,
	)
	email, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("RawEmailStore.FindByProviderMessageID: %w", err)
	}
	return email, nil
}

// ListByUser implements store.RawEmailStore, newest received first.
func (s *RawEmailStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.RawEmail, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, provider, provider_message_id, from_addr, subject, snippet, received_at, body_text, body_html, headers
		 FROM raw_emails WHERE user_id = ? ORDER BY received_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("RawEmailStore.ListByUser: %w", err)
	}
	defer rows.Close()

	var emails []*domain.RawEmail
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("RawEmailStore.ListByUser: scan: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmail(row rowScanner) (*domain.RawEmail, error) {
	var email domain.RawEmail
	var headers string
	err := row.Scan(
		&email.ID, &email.UserID, &email.Provider, &email.ProviderMessageID,
		&email.From, &email.Subject, &email.Snippet, &email.ReceivedAt,
		&email.BodyText, &email.BodyHTML, &headers,
	)
	if err != nil {
		return nil, err
	}
	email.Headers = make(map[string]string)
	unmarshalJSON(headers, &email.Headers)
	return &email, nil
}

var _ store.RawEmailStore = (*RawEmailStore)(nil)
