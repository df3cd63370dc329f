package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. The transactions table is the
// append-only source of truth; no table stores a derived quantity.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    sku        TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    unit       TEXT NOT NULL DEFAULT 'pcs',
    active     INTEGER NOT NULL DEFAULT 1,
    tags       TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS locations (
    name       TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS transactions (
    id            TEXT PRIMARY KEY,
    type          TEXT NOT NULL CHECK (type IN ('pickup', 'delivery', 'return', 'transfer', 'adjustment')),
    sku           TEXT NOT NULL REFERENCES items(sku),
    quantity      INTEGER NOT NULL CHECK (quantity > 0),
    from_location TEXT REFERENCES locations(name),
    to_location   TEXT REFERENCES locations(name),
    ref           TEXT,
    status        TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'in_transit', 'completed', 'cancelled')),
    applied       INTEGER NOT NULL DEFAULT 0,
    applied_at    DATETIME,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_by    INTEGER REFERENCES users(id),
    ticket_ref    TEXT,
    synced_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_transactions_sku ON transactions(sku);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);

CREATE TABLE IF NOT EXISTS signatures (
    id         INTEGER PRIMARY KEY,
    image      BLOB NOT NULL,
    image_mime TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pickup_confirmations (
    transaction_id  TEXT PRIMARY KEY REFERENCES transactions(id),
    picker          TEXT NOT NULL,
    method          TEXT CHECK (method IN ('code', 'signature')),
    code            TEXT,
    code_expires_at DATETIME,
    confirmed       INTEGER NOT NULL DEFAULT 0,
    confirmed_at    DATETIME,
    signature_id    INTEGER REFERENCES signatures(id)
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
