package db

// SchemaSQL is the single source of truth for the cardwatch state schema.
// Tests apply it via InitSchema so repository code and schema cannot
// drift without an immediate "no such column" failure.
const SchemaSQL = `
-- Cards (per-card escalation state, keyed by the external board ID)
CREATE TABLE IF NOT EXISTS cards (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	board_ref TEXT,
	status TEXT NOT NULL CHECK(status IN ('open', 'awaiting_response', 'resolved', 'exhausted', 'archived')) DEFAULT 'open',
	cycle_seq INTEGER NOT NULL DEFAULT 1,
	opened_at DATETIME NOT NULL,
	due_at DATETIME,
	reminder_level INTEGER NOT NULL DEFAULT 0,
	contacted INTEGER NOT NULL DEFAULT 0,
	last_contact_at DATETIME,
	has_responded INTEGER NOT NULL DEFAULT 0,
	responded_at DATETIME,
	responded_by TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cards_status ON cards(status);

-- Assigned recipients (ordered, unique by identity per card)
CREATE TABLE IF NOT EXISTS card_recipients (
	card_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	identity TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	chat_handle TEXT,
	PRIMARY KEY (card_id, identity),
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
);

-- Escalation claims: the at-most-once key per (card, cycle, level).
-- A claim is taken before any send for that level; a duplicate insert
-- means a previous attempt already delivered (or was delivering) it.
CREATE TABLE IF NOT EXISTS escalation_claims (
	card_id TEXT NOT NULL,
	cycle_seq INTEGER NOT NULL,
	level INTEGER NOT NULL,
	claimed_at DATETIME NOT NULL,
	PRIMARY KEY (card_id, cycle_seq, level),
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
);

-- Escalation events: immutable per-attempt delivery records.
CREATE TABLE IF NOT EXISTS escalation_events (
	id TEXT PRIMARY KEY,
	card_id TEXT NOT NULL,
	cycle_seq INTEGER NOT NULL,
	level INTEGER NOT NULL,
	channel TEXT NOT NULL CHECK(channel IN ('comment', 'email', 'sms', 'chat')),
	recipient TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK(outcome IN ('delivered', 'failed')),
	error_class TEXT,
	provider_message_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_card ON escalation_events(card_id, cycle_seq, level);
`

// GetSchemaSQL returns the schema for test fixtures.
func GetSchemaSQL() string {
	return SchemaSQL
}
