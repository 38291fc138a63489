// Package sqlite backs the store interfaces with an embedded SQLite
// database (modernc.org/sqlite, pure Go). Upserts use ON CONFLICT clauses
// so insert-vs-update is reported natively, and job counters move through
// UPDATE ... SET x = x + ? so increments stay atomic under concurrency.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS raw_emails (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	provider            TEXT NOT NULL,
	provider_message_id TEXT NOT NULL,
	from_addr           TEXT NOT NULL DEFAULT '',
	subject             TEXT NOT NULL DEFAULT '',
	snippet             TEXT NOT NULL DEFAULT '',
	received_at         TIMESTAMP,
	body_text           TEXT NOT NULL DEFAULT '',
	body_html           TEXT NOT NULL DEFAULT '',
	headers             TEXT NOT NULL DEFAULT '{}',
	UNIQUE (user_id, provider, provider_message_id)
);

CREATE TABLE IF NOT EXISTS transactions (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	dedupe_hash     TEXT NOT NULL,
	source_email_id TEXT NOT NULL,
	merchant        TEXT NOT NULL,
	merchant_raw    TEXT NOT NULL,
	vpa             TEXT NOT NULL DEFAULT '',
	amount          REAL NOT NULL,
	currency        TEXT NOT NULL,
	txn_date        TIMESTAMP NOT NULL,
	txn_type        TEXT NOT NULL,
	txn_mode        TEXT NOT NULL,
	card_last4      TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	subcategory     TEXT NOT NULL DEFAULT '',
	confidence      REAL NOT NULL DEFAULT 0,
	method          TEXT NOT NULL DEFAULT '',
	needs_review    INTEGER NOT NULL DEFAULT 0,
	category_meta   TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_merchant ON transactions (user_id, merchant);
CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions (user_id, txn_date);

CREATE TABLE IF NOT EXISTS statements (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	issuer          TEXT NOT NULL,
	period_start    TIMESTAMP NOT NULL,
	period_end      TIMESTAMP NOT NULL,
	total_due       REAL NOT NULL,
	source_email_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS merchant_rules (
	user_id       TEXT NOT NULL,
	merchant      TEXT NOT NULL,
	category      TEXT NOT NULL,
	subcategory   TEXT NOT NULL DEFAULT '',
	category_meta TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (user_id, merchant)
);

CREATE TABLE IF NOT EXISTS sync_jobs (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	status           TEXT NOT NULL,
	query            TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	max_results      INTEGER NOT NULL DEFAULT 0,
	total_emails     INTEGER,
	processed_emails INTEGER NOT NULL DEFAULT 0,
	new_emails       INTEGER NOT NULL DEFAULT 0,
	transactions     INTEGER NOT NULL DEFAULT 0,
	statements       INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL,
	started_at       TIMESTAMP,
	completed_at     TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sync_jobs_user ON sync_jobs (user_id, created_at);
`

// Open opens (and if needed creates) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: %w", err)
	}

	// modernc sqlite serializes writes; one connection avoids table-lock
	// errors under concurrent stores sharing the handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: applying schema: %w", err)
	}
	return db, nil
}

func marshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalJSON(data string, v interface{}) {
	if data == "" {
		return
	}
	_ = json.Unmarshal([]byte(data), v)
}
