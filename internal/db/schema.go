package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS roles (
    principal  TEXT NOT NULL,
    role       TEXT NOT NULL CHECK (role IN ('farmer', 'distributor', 'retailer', 'consumer', 'admin')),
    granted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (principal, role)
);

CREATE TABLE IF NOT EXISTS items (
    sku                     INTEGER PRIMARY KEY,
    upc                     INTEGER NOT NULL UNIQUE,
    owner_id                TEXT NOT NULL,
    origin_farmer_id        TEXT NOT NULL,
    origin_farm_name        TEXT NOT NULL,
    origin_farm_information TEXT NOT NULL DEFAULT '',
    origin_farm_latitude    TEXT NOT NULL DEFAULT '',
    origin_farm_longitude   TEXT NOT NULL DEFAULT '',
    product_id              INTEGER NOT NULL DEFAULT 0,
    product_notes           TEXT NOT NULL DEFAULT '',
    product_price           INTEGER NOT NULL DEFAULT 0,
    state                   TEXT NOT NULL DEFAULT 'harvested'
        CHECK (state IN ('harvested', 'processed', 'packed', 'forsale', 'sold', 'shipped', 'received', 'purchased')),
    distributor_id          TEXT NOT NULL DEFAULT '',
    retailer_id             TEXT NOT NULL DEFAULT '',
    consumer_id             TEXT NOT NULL DEFAULT '',
    photo                   BLOB,
    photo_mime              TEXT,
    created_at              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS accounts (
    principal TEXT PRIMARY KEY,
    balance   INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS events (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    upc        INTEGER NOT NULL,
    actor      TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_upc ON events(upc);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
